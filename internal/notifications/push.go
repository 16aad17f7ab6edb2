package notifications

import (
	"context"
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/config"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

// Pusher delivers a stored notification outside the app.
type Pusher interface {
	Push(ctx context.Context, to models.User, n models.Notification) error
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioPusher sends notifications as SMS to users with a phone number.
type TwilioPusher struct {
	api     messageCreator
	from    string
	baseURL string
}

// NewTwilioPusher returns nil when Twilio is not configured.
func NewTwilioPusher(cfg config.TwilioConfig, baseURL string) *TwilioPusher {
	if !cfg.Enabled() {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	log.Println("✅ Twilio SMS push enabled")
	return &TwilioPusher{api: client.Api, from: cfg.From, baseURL: baseURL}
}

// Push sends one SMS. Users without a phone number are skipped.
func (p *TwilioPusher) Push(ctx context.Context, to models.User, n models.Notification) error {
	if to.Phone == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to.Phone)
	params.SetFrom(p.from)
	params.SetBody(smsBody(n, p.baseURL))

	if _, err := p.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}

func smsBody(n models.Notification, baseURL string) string {
	body := n.Title
	if n.Message != "" {
		body += ": " + n.Message
	}
	if n.Link != "" {
		body += " " + baseURL + n.Link
	}
	return body
}

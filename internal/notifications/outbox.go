package notifications

import (
	"context"
	"log"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

// Sender is the part of Service an Outbox flushes into.
type Sender interface {
	Notify(ctx context.Context, n models.Notification) error
	Retract(ctx context.Context, recipientID int, typ models.NotificationType, link string) (int64, error)
}

type retraction struct {
	recipientID int
	typ         models.NotificationType
	link        string
}

// Outbox collects notification writes raised inside a transaction so they
// can be flushed once it commits. Reset it at the top of every attempt of a
// retried transaction closure.
type Outbox struct {
	notify  []models.Notification
	retract []retraction
}

// Reset drops everything queued by a previous attempt.
func (o *Outbox) Reset() {
	o.notify = o.notify[:0]
	o.retract = o.retract[:0]
}

// Notify queues a notification.
func (o *Outbox) Notify(n models.Notification) {
	o.notify = append(o.notify, n)
}

// Retract queues removal of (recipient, type, link).
func (o *Outbox) Retract(recipientID int, typ models.NotificationType, link string) {
	o.retract = append(o.retract, retraction{recipientID: recipientID, typ: typ, link: link})
}

// Len returns the number of queued operations.
func (o *Outbox) Len() int {
	return len(o.notify) + len(o.retract)
}

// Flush applies retractions, then notifications. Failures are logged and
// swallowed: the action that queued them has already committed.
func (o *Outbox) Flush(ctx context.Context, s Sender) {
	if s == nil {
		return
	}
	for _, r := range o.retract {
		if _, err := s.Retract(ctx, r.recipientID, r.typ, r.link); err != nil {
			log.Printf("⚠️ Notification retract failed (recipient=%d type=%s link=%s): %v", r.recipientID, r.typ, r.link, err)
		}
	}
	for _, n := range o.notify {
		if err := s.Notify(ctx, n); err != nil {
			log.Printf("⚠️ Notification failed (recipient=%d type=%s link=%s): %v", n.RecipientID, n.Type, n.Link, err)
		}
	}
	o.Reset()
}

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationAnswer         NotificationType = "answer"
	NotificationComment        NotificationType = "comment"
	NotificationVote           NotificationType = "vote"
	NotificationMention        NotificationType = "mention"
	NotificationAcceptedAnswer NotificationType = "accepted_answer"
	NotificationSystem         NotificationType = "system"
)

type Notification struct {
	ID          int              `gorm:"primaryKey" json:"id"`
	RecipientID int              `gorm:"not null;index:idx_notification_group,priority:1" json:"recipient_id"`
	ActorID     *int             `json:"actor_id,omitempty"`
	Type        NotificationType `gorm:"type:varchar(32);not null;index:idx_notification_group,priority:2" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	Link        string           `gorm:"type:varchar(255);index:idx_notification_group,priority:3" json:"link"`
	Metadata    datatypes.JSON   `json:"metadata,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// QuestionLink is the stable locator of a question.
func QuestionLink(questionID int) string {
	return fmt.Sprintf("/questions/%d", questionID)
}

// AnswerLink is the stable locator of an answer.
func AnswerLink(questionID, answerID int) string {
	return fmt.Sprintf("/questions/%d#answer-%d", questionID, answerID)
}

// TargetLink returns the locator of a votable target.
func TargetLink(targetType TargetType, questionID, targetID int) string {
	if targetType == TargetAnswer {
		return AnswerLink(questionID, targetID)
	}
	return QuestionLink(questionID)
}

// ParseLink extracts the subject ids from a link built by QuestionLink or
// AnswerLink. answerID is 0 for question links. ok is false for anything else.
func ParseLink(link string) (questionID, answerID int, ok bool) {
	rest, found := strings.CutPrefix(link, "/questions/")
	if !found {
		return 0, 0, false
	}
	qs, frag, hasFrag := strings.Cut(rest, "#")
	q, err := strconv.Atoi(qs)
	if err != nil || q <= 0 {
		return 0, 0, false
	}
	if !hasFrag {
		return q, 0, true
	}
	as, found := strings.CutPrefix(frag, "answer-")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(as)
	if err != nil || a <= 0 {
		return 0, 0, false
	}
	return q, a, true
}

// Package notifications persists user-facing notifications and keeps them
// free of duplicates and orphans.
//
// Writes are best-effort: callers flush an Outbox after their own
// transaction commits, and a failed write is logged, never returned to the
// action that caused it. Inline dedup on each write plus the periodic Sweep
// keep at most one live row per (recipient, type, link).
package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

// Service is the notification sink.
type Service struct {
	db     *database.Database
	pusher Pusher
}

// NewService creates a sink. pusher may be nil.
func NewService(db *database.Database, pusher Pusher) *Service {
	return &Service{db: db, pusher: pusher}
}

// Notify persists n and supersedes older rows of the same
// (recipient, type, link). Notifications addressed to their own actor are
// dropped. After the row is stored the configured Pusher, if any, is tried.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	const op = "notifications.Notify"

	if n.RecipientID == 0 {
		return apperror.InvalidArgument(op, "Notification has no recipient")
	}
	if n.ActorID != nil && *n.ActorID == n.RecipientID {
		return nil
	}
	n.ID = 0
	n.IsRead = false
	n.ReadAt = nil

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&n).Error; err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		err := tx.Where("recipient_id = ? AND type = ? AND link = ? AND id <> ?", n.RecipientID, n.Type, n.Link, n.ID).
			Delete(&models.Notification{}).Error
		if err != nil {
			return fmt.Errorf("supersede notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperror.Internal(op, err)
	}

	if s.pusher != nil {
		s.push(ctx, n)
	}
	return nil
}

func (s *Service) push(ctx context.Context, n models.Notification) {
	var recipient models.User
	if err := s.db.DB.WithContext(ctx).Select("id", "phone").First(&recipient, n.RecipientID).Error; err != nil {
		log.Printf("⚠️ Push skipped for notification %d: %v", n.ID, err)
		return
	}
	if err := s.pusher.Push(ctx, recipient, n); err != nil {
		log.Printf("⚠️ Push failed for notification %d: %v", n.ID, err)
	}
}

// Retract deletes every notification of (recipient, type, link).
func (s *Service) Retract(ctx context.Context, recipientID int, typ models.NotificationType, link string) (int64, error) {
	res := s.db.DB.WithContext(ctx).
		Where("recipient_id = ? AND type = ? AND link = ?", recipientID, typ, link).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperror.Internal("notifications.Retract", res.Error)
	}
	return res.RowsAffected, nil
}

// List returns a recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.DB.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var out []models.Notification
	if err := q.Order("created_at desc, id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperror.Internal("notifications.List", err)
	}
	return out, nil
}

// UnreadCount returns how many unread notifications a recipient has.
func (s *Service) UnreadCount(ctx context.Context, recipientID int) (int64, error) {
	var count int64
	err := s.db.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperror.Internal("notifications.UnreadCount", err)
	}
	return count, nil
}

// MarkRead flips is_read on one of the recipient's notifications.
func (s *Service) MarkRead(ctx context.Context, recipientID, id int) error {
	now := time.Now().UTC()
	res := s.db.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if res.Error != nil {
		return apperror.Internal("notifications.MarkRead", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("notifications.MarkRead", "Notification not found")
	}
	return nil
}

// MarkAllRead flips is_read on every unread notification of the recipient.
func (s *Service) MarkAllRead(ctx context.Context, recipientID int) (int64, error) {
	now := time.Now().UTC()
	res := s.db.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if res.Error != nil {
		return 0, apperror.Internal("notifications.MarkAllRead", res.Error)
	}
	return res.RowsAffected, nil
}

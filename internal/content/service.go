// Package content creates and deletes questions and answers. Deletions
// publish events.EntityDeleted after commit; the owners of derived data
// (votes, notifications) clean up in their subscribers.
package content

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/acceptance"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/events"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/votes"
)

type Service struct {
	db         *database.Database
	acceptance *acceptance.Service
	bus        *events.Bus
	sender     notifications.Sender
}

func NewService(db *database.Database, acc *acceptance.Service, bus *events.Bus, sender notifications.Sender) *Service {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Service{db: db, acceptance: acc, bus: bus, sender: sender}
}

// CreateQuestion stores a question by actorID.
func (s *Service) CreateQuestion(ctx context.Context, actorID int, req models.CreateQuestionRequest) (models.Question, error) {
	const op = "content.CreateQuestion"

	if actorID <= 0 {
		return models.Question{}, apperror.Unauthorized(op)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.Question{}, apperror.InvalidArgument(op, "Title is required")
	}

	q := models.Question{Title: title, Body: req.Body, AuthorID: actorID}
	if err := s.db.DB.WithContext(ctx).Create(&q).Error; err != nil {
		return models.Question{}, apperror.Internal(op, err)
	}
	return q, nil
}

// GetQuestion loads a question with its author and answers, accepted
// answer first.
func (s *Service) GetQuestion(ctx context.Context, id int) (models.Question, []models.Answer, error) {
	const op = "content.GetQuestion"

	var q models.Question
	err := s.db.DB.WithContext(ctx).Preload("Author").First(&q, id).Error
	if database.IsNotFound(err) {
		return q, nil, apperror.NotFound(op, "Question not found")
	}
	if err != nil {
		return q, nil, apperror.Internal(op, err)
	}

	answers := []models.Answer{}
	err = s.db.DB.WithContext(ctx).
		Preload("Author").
		Where("question_id = ?", id).
		Order("is_accepted desc, created_at asc, id asc").
		Find(&answers).Error
	if err != nil {
		return q, nil, apperror.Internal(op, err)
	}
	return q, answers, nil
}

// CreateAnswer stores an answer and notifies the question author.
func (s *Service) CreateAnswer(ctx context.Context, actorID, questionID int, req models.CreateAnswerRequest) (models.Answer, error) {
	const op = "content.CreateAnswer"

	if actorID <= 0 {
		return models.Answer{}, apperror.Unauthorized(op)
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return models.Answer{}, apperror.InvalidArgument(op, "Body is required")
	}

	var (
		a   models.Answer
		q   models.Question
		out notifications.Outbox
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		out.Reset()

		err := tx.WithContext(ctx).Select("id", "title", "author_id").First(&q, questionID).Error
		if database.IsNotFound(err) {
			return apperror.NotFound(op, "Question not found")
		}
		if err != nil {
			return fmt.Errorf("load question %d: %w", questionID, err)
		}

		a = models.Answer{QuestionID: q.ID, AuthorID: actorID, Body: body}
		if err := tx.WithContext(ctx).Create(&a).Error; err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}

		out.Notify(models.Notification{
			RecipientID: q.AuthorID,
			ActorID:     &actorID,
			Type:        models.NotificationAnswer,
			Title:       "New answer to your question",
			Message:     q.Title,
			Link:        models.AnswerLink(q.ID, a.ID),
		})
		return nil
	})
	if err != nil {
		return models.Answer{}, apperror.Ensure(op, err)
	}

	out.Flush(ctx, s.sender)
	return a, nil
}

func canDelete(actorID, authorID int, role string) bool {
	return actorID == authorID || role == models.RoleAdmin
}

// DeleteQuestion removes a question and its answers. Reputation already
// earned on them is kept.
func (s *Service) DeleteQuestion(ctx context.Context, actorID int, role string, id int) error {
	const op = "content.DeleteQuestion"

	if actorID <= 0 {
		return apperror.Unauthorized(op)
	}

	var answerIDs []int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var q models.Question
		err := database.ForUpdate(tx.WithContext(ctx)).Select("id", "author_id").First(&q, id).Error
		if database.IsNotFound(err) {
			return apperror.NotFound(op, "Question not found")
		}
		if err != nil {
			return fmt.Errorf("lock question %d: %w", id, err)
		}
		if !canDelete(actorID, q.AuthorID, role) {
			return apperror.Forbidden(op, "You can only delete your own questions")
		}

		answerIDs = nil
		if err := tx.WithContext(ctx).Model(&models.Answer{}).Where("question_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
			return fmt.Errorf("list answers of question %d: %w", id, err)
		}
		if err := tx.WithContext(ctx).Where("question_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
			return fmt.Errorf("delete answers of question %d: %w", id, err)
		}
		if err := tx.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
			return fmt.Errorf("delete question %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return apperror.Ensure(op, err)
	}

	s.bus.Publish(ctx, events.EntityDeleted{Kind: events.KindQuestion, ID: id, QuestionID: id, AnswerIDs: answerIDs})
	return nil
}

// DeleteAnswer removes an answer. If it was accepted, the acceptance and
// its bonus are released first.
func (s *Service) DeleteAnswer(ctx context.Context, actorID int, role string, id int) error {
	const op = "content.DeleteAnswer"

	if actorID <= 0 {
		return apperror.Unauthorized(op)
	}

	var a models.Answer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).First(&a, id).Error
		if database.IsNotFound(err) {
			return apperror.NotFound(op, "Answer not found")
		}
		if err != nil {
			return fmt.Errorf("load answer %d: %w", id, err)
		}
		if !canDelete(actorID, a.AuthorID, role) {
			return apperror.Forbidden(op, "You can only delete your own answers")
		}

		if err := s.acceptance.ReleaseAnswer(ctx, tx, a); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&models.Answer{}, id).Error; err != nil {
			return fmt.Errorf("delete answer %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return apperror.Ensure(op, err)
	}

	s.bus.Publish(ctx, events.EntityDeleted{Kind: events.KindAnswer, ID: id, QuestionID: a.QuestionID})
	return nil
}

// RegisterCleanup subscribes the owners of derived data to deletions.
func RegisterCleanup(bus *events.Bus, db *database.Database, v *votes.Service, n *notifications.Service) {
	bus.Subscribe("votes.purge", func(ctx context.Context, evt events.EntityDeleted) error {
		return db.WithTx(ctx, func(tx *gorm.DB) error {
			switch evt.Kind {
			case events.KindQuestion:
				if _, err := v.PurgeTarget(ctx, tx, models.TargetQuestion, evt.ID); err != nil {
					return err
				}
				_, err := v.PurgeTarget(ctx, tx, models.TargetAnswer, evt.AnswerIDs...)
				return err
			case events.KindAnswer:
				_, err := v.PurgeTarget(ctx, tx, models.TargetAnswer, evt.ID)
				return err
			}
			return nil
		})
	})

	bus.Subscribe("notifications.purge", func(ctx context.Context, evt events.EntityDeleted) error {
		var err error
		switch evt.Kind {
		case events.KindQuestion:
			_, err = n.PurgeQuestion(ctx, evt.ID)
		case events.KindAnswer:
			_, err = n.PurgeAnswer(ctx, evt.QuestionID, evt.ID)
		}
		return err
	})
}

// Package acceptance owns the accepted-answer relationship of a question.
//
// A question is either in NoAcceptedAnswer (accepted_answer_id is NULL) or
// AnswerAccepted(id). Every transition locks the question row first, so
// transitions on one question are serialized, and moves the accept bonus
// in the same transaction: the previous grant is reversed before the new
// one is applied.
package acceptance

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
)

type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeUnaccepted Outcome = "unaccepted"
)

// Result describes a completed transition. DisplacedID is the answer that
// lost its acceptance, 0 if none.
type Result struct {
	Outcome     Outcome
	QuestionID  int
	AnswerID    int
	DisplacedID int
}

type Service struct {
	db     *database.Database
	ledger *reputation.Ledger
	sender notifications.Sender
}

// NewService creates the state machine. sender may be nil.
func NewService(db *database.Database, ledger *reputation.Ledger, sender notifications.Sender) *Service {
	return &Service{db: db, ledger: ledger, sender: sender}
}

// Accept marks answerID as the accepted answer of questionID, displacing
// any other accepted answer. Accepting the answer that is already accepted
// is a Conflict; use Toggle for re-POST semantics.
func (s *Service) Accept(ctx context.Context, questionID, answerID, actorID int) (Result, error) {
	const op = "acceptance.Accept"
	return s.run(ctx, op, actorID, func(tx *gorm.DB, out *notifications.Outbox) (Result, error) {
		q, err := s.lockQuestion(ctx, tx, op, questionID, actorID)
		if err != nil {
			return Result{}, err
		}
		if q.AcceptedAnswerID != nil && *q.AcceptedAnswerID == answerID {
			return Result{}, apperror.Conflict(op, "Answer is already accepted")
		}
		return s.accept(ctx, tx, op, out, q, answerID)
	})
}

// Unaccept clears the accepted answer of questionID.
func (s *Service) Unaccept(ctx context.Context, questionID, actorID int) (Result, error) {
	const op = "acceptance.Unaccept"
	return s.run(ctx, op, actorID, func(tx *gorm.DB, out *notifications.Outbox) (Result, error) {
		q, err := s.lockQuestion(ctx, tx, op, questionID, actorID)
		if err != nil {
			return Result{}, err
		}
		if q.AcceptedAnswerID == nil {
			return Result{}, apperror.Conflict(op, "Question has no accepted answer")
		}
		return s.unaccept(ctx, tx, op, out, q)
	})
}

// Toggle is the accept endpoint: it unaccepts answerID when it is the
// accepted answer and accepts it otherwise.
func (s *Service) Toggle(ctx context.Context, answerID, actorID int) (Result, error) {
	const op = "acceptance.Toggle"
	return s.run(ctx, op, actorID, func(tx *gorm.DB, out *notifications.Outbox) (Result, error) {
		var a models.Answer
		err := tx.WithContext(ctx).Select("id", "question_id").First(&a, answerID).Error
		if database.IsNotFound(err) {
			return Result{}, apperror.NotFound(op, "Answer not found")
		}
		if err != nil {
			return Result{}, fmt.Errorf("load answer %d: %w", answerID, err)
		}

		q, err := s.lockQuestion(ctx, tx, op, a.QuestionID, actorID)
		if err != nil {
			return Result{}, err
		}
		if q.AcceptedAnswerID != nil && *q.AcceptedAnswerID == answerID {
			return s.unaccept(ctx, tx, op, out, q)
		}
		return s.accept(ctx, tx, op, out, q, answerID)
	})
}

// ReleaseAnswer clears the acceptance of an answer that is being deleted
// inside tx, reversing its bonus. The caller holds no locks yet.
func (s *Service) ReleaseAnswer(ctx context.Context, tx *gorm.DB, answer models.Answer) error {
	const op = "acceptance.ReleaseAnswer"

	var q models.Question
	err := database.ForUpdate(tx.WithContext(ctx)).First(&q, answer.QuestionID).Error
	if database.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock question %d: %w", answer.QuestionID, err)
	}
	if q.AcceptedAnswerID == nil || *q.AcceptedAnswerID != answer.ID {
		return nil
	}
	_, err = s.unaccept(ctx, tx, op, &notifications.Outbox{}, &q)
	return err
}

func (s *Service) run(ctx context.Context, op string, actorID int, fn func(tx *gorm.DB, out *notifications.Outbox) (Result, error)) (Result, error) {
	if actorID <= 0 {
		return Result{}, apperror.Unauthorized(op)
	}

	var (
		out    notifications.Outbox
		result Result
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		out.Reset()
		var err error
		result, err = fn(tx, &out)
		return err
	})
	if err != nil {
		return Result{}, apperror.Ensure(op, err)
	}

	out.Flush(ctx, s.sender)
	return result, nil
}

func (s *Service) lockQuestion(ctx context.Context, tx *gorm.DB, op string, questionID, actorID int) (*models.Question, error) {
	var q models.Question
	err := database.ForUpdate(tx.WithContext(ctx)).First(&q, questionID).Error
	if database.IsNotFound(err) {
		return nil, apperror.NotFound(op, "Question not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lock question %d: %w", questionID, err)
	}
	if q.AuthorID != actorID {
		return nil, apperror.Forbidden(op, "Only the question author can accept answers")
	}
	return &q, nil
}

// lockAnswers locks the given answers of question q in ascending id order.
func lockAnswers(ctx context.Context, tx *gorm.DB, op string, q *models.Question, ids ...int) (map[int]models.Answer, error) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	out := make(map[int]models.Answer, len(sorted))
	for _, id := range sorted {
		if _, seen := out[id]; seen {
			continue
		}
		var a models.Answer
		err := database.ForUpdate(tx.WithContext(ctx)).First(&a, id).Error
		if database.IsNotFound(err) {
			return nil, apperror.NotFound(op, "Answer not found")
		}
		if err != nil {
			return nil, fmt.Errorf("lock answer %d: %w", id, err)
		}
		if a.QuestionID != q.ID {
			return nil, apperror.NotFound(op, "Answer not found for this question")
		}
		out[id] = a
	}
	return out, nil
}

func (s *Service) accept(ctx context.Context, tx *gorm.DB, op string, out *notifications.Outbox, q *models.Question, answerID int) (Result, error) {
	ids := []int{answerID}
	if q.AcceptedAnswerID != nil {
		ids = append(ids, *q.AcceptedAnswerID)
	}
	answers, err := lockAnswers(ctx, tx, op, q, ids...)
	if err != nil {
		return Result{}, err
	}
	next := answers[answerID]

	result := Result{Outcome: OutcomeAccepted, QuestionID: q.ID, AnswerID: answerID}

	userIDs := []int{next.AuthorID}
	if q.AcceptedAnswerID != nil {
		userIDs = append(userIDs, answers[*q.AcceptedAnswerID].AuthorID)
	}
	if err := s.ledger.LockUsers(ctx, tx, userIDs...); err != nil {
		return Result{}, err
	}

	if q.AcceptedAnswerID != nil {
		prev := answers[*q.AcceptedAnswerID]
		if err := s.release(ctx, tx, out, q, prev); err != nil {
			return Result{}, err
		}
		result.DisplacedID = prev.ID
	}

	// No bonus for accepting one's own answer.
	if next.AuthorID != q.AuthorID {
		cause := reputation.AcceptCause(q.ID, next.ID)
		if _, err := s.ledger.ApplyDelta(ctx, tx, next.AuthorID, reputation.AcceptedAnswerBonus, cause); err != nil {
			return Result{}, err
		}
	}

	err = tx.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", next.ID).Update("is_accepted", true).Error
	if err != nil {
		return Result{}, fmt.Errorf("mark answer %d accepted: %w", next.ID, err)
	}
	err = tx.WithContext(ctx).Model(&models.Question{}).Where("id = ?", q.ID).
		Updates(map[string]any{"accepted_answer_id": next.ID, "has_accepted_answer": true}).Error
	if err != nil {
		return Result{}, fmt.Errorf("set accepted answer of question %d: %w", q.ID, err)
	}

	actorID := q.AuthorID
	out.Notify(models.Notification{
		RecipientID: next.AuthorID,
		ActorID:     &actorID,
		Type:        models.NotificationAcceptedAnswer,
		Title:       "Your answer was accepted",
		Message:     q.Title,
		Link:        models.AnswerLink(q.ID, next.ID),
	})
	return result, nil
}

func (s *Service) unaccept(ctx context.Context, tx *gorm.DB, op string, out *notifications.Outbox, q *models.Question) (Result, error) {
	answers, err := lockAnswers(ctx, tx, op, q, *q.AcceptedAnswerID)
	if err != nil {
		return Result{}, err
	}
	prev := answers[*q.AcceptedAnswerID]

	if err := s.ledger.LockUsers(ctx, tx, prev.AuthorID); err != nil {
		return Result{}, err
	}
	if err := s.release(ctx, tx, out, q, prev); err != nil {
		return Result{}, err
	}

	err = tx.WithContext(ctx).Model(&models.Question{}).Where("id = ?", q.ID).
		Updates(map[string]any{"accepted_answer_id": nil, "has_accepted_answer": false}).Error
	if err != nil {
		return Result{}, fmt.Errorf("clear accepted answer of question %d: %w", q.ID, err)
	}

	return Result{Outcome: OutcomeUnaccepted, QuestionID: q.ID, AnswerID: prev.ID}, nil
}

// release reverses prev's bonus, clears its flag and retracts the
// notification that announced it.
func (s *Service) release(ctx context.Context, tx *gorm.DB, out *notifications.Outbox, q *models.Question, prev models.Answer) error {
	if _, err := s.ledger.Reverse(ctx, tx, reputation.AcceptCause(q.ID, prev.ID)); err != nil {
		return err
	}
	err := tx.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", prev.ID).Update("is_accepted", false).Error
	if err != nil {
		return fmt.Errorf("clear accepted flag of answer %d: %w", prev.ID, err)
	}
	out.Retract(prev.AuthorID, models.NotificationAcceptedAnswer, models.AnswerLink(q.ID, prev.ID))
	return nil
}

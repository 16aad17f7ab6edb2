// Package votes records one vote per (voter, target) and raises the
// reputation deltas and notifications a vote transition implies.
package votes

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
)

// Action is the transition a CastVote call produced.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

// Result of CastVote. Polarity is empty when the vote was removed.
type Result struct {
	Action   Action
	Polarity models.Polarity
}

// Tally is the vote count of one target.
type Tally struct {
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`
	Score     int             `json:"score"`
	UserVote  models.Polarity `json:"user_vote,omitempty"`
}

type Service struct {
	db     *database.Database
	ledger *reputation.Ledger
	sender notifications.Sender
}

// NewService creates the vote ledger. sender receives notifications after
// commit and may be nil.
func NewService(db *database.Database, ledger *reputation.Ledger, sender notifications.Sender) *Service {
	return &Service{db: db, ledger: ledger, sender: sender}
}

type target struct {
	authorID   int
	questionID int
}

// CastVote creates, flips or removes the actor's vote on a target:
//
//	no vote            -> created
//	same polarity      -> removed (toggle off)
//	opposite polarity  -> updated
//
// The reputation grant of the previous polarity is reversed and the grant
// of the new one applied in the same transaction. Votes on one's own
// content are recorded without any reputation effect or notification.
func (s *Service) CastVote(ctx context.Context, actorID int, targetType models.TargetType, targetID int, polarity models.Polarity) (Result, error) {
	const op = "votes.CastVote"

	if actorID <= 0 {
		return Result{}, apperror.Unauthorized(op)
	}
	if _, err := models.ParseTargetType(string(targetType)); err != nil {
		return Result{}, apperror.InvalidArgument(op, "Invalid target type")
	}
	if polarity != models.PolarityUp && polarity != models.PolarityDown {
		return Result{}, apperror.InvalidArgument(op, "Invalid vote type")
	}
	if targetID <= 0 {
		return Result{}, apperror.InvalidArgument(op, "Invalid target id")
	}

	var (
		out    notifications.Outbox
		result Result
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		out.Reset()

		tgt, err := lockTarget(ctx, tx, targetType, targetID)
		if err != nil {
			return err
		}

		var from, to models.Polarity
		result, from, to, err = transition(ctx, tx, actorID, targetType, targetID, polarity)
		if err != nil {
			return err
		}

		if tgt.authorID == actorID {
			return nil
		}

		if from != "" {
			if _, err := s.ledger.Reverse(ctx, tx, reputation.VoteCause(actorID, targetType, targetID, from)); err != nil {
				return err
			}
		}
		if to != "" {
			cause := reputation.VoteCause(actorID, targetType, targetID, to)
			if _, err := s.ledger.ApplyDelta(ctx, tx, tgt.authorID, reputation.VotePoints(to), cause); err != nil {
				return err
			}
		}

		if result.Action == ActionCreated && to == models.PolarityUp {
			out.Notify(models.Notification{
				RecipientID: tgt.authorID,
				ActorID:     &actorID,
				Type:        models.NotificationVote,
				Title:       fmt.Sprintf("Your %s received an upvote", targetType),
				Link:        models.TargetLink(targetType, tgt.questionID, targetID),
			})
		}
		return nil
	})
	if err != nil {
		return Result{}, apperror.Ensure(op, err)
	}

	out.Flush(ctx, s.sender)
	return result, nil
}

// lockTarget takes the row lock on the voted entity. Every vote on a target
// passes through this lock, so concurrent votes on it are serialized.
func lockTarget(ctx context.Context, tx *gorm.DB, targetType models.TargetType, targetID int) (target, error) {
	const op = "votes.lockTarget"

	switch targetType {
	case models.TargetQuestion:
		var q models.Question
		err := database.ForUpdate(tx.WithContext(ctx)).Select("id", "author_id").First(&q, targetID).Error
		if database.IsNotFound(err) {
			return target{}, apperror.NotFound(op, "Question not found")
		}
		if err != nil {
			return target{}, fmt.Errorf("lock question %d: %w", targetID, err)
		}
		return target{authorID: q.AuthorID, questionID: q.ID}, nil

	default:
		var a models.Answer
		err := database.ForUpdate(tx.WithContext(ctx)).Select("id", "question_id", "author_id").First(&a, targetID).Error
		if database.IsNotFound(err) {
			return target{}, apperror.NotFound(op, "Answer not found")
		}
		if err != nil {
			return target{}, fmt.Errorf("lock answer %d: %w", targetID, err)
		}
		return target{authorID: a.AuthorID, questionID: a.QuestionID}, nil
	}
}

// transition applies the vote row change and reports the polarity that was
// live before and after it.
func transition(ctx context.Context, tx *gorm.DB, actorID int, targetType models.TargetType, targetID int, polarity models.Polarity) (Result, models.Polarity, models.Polarity, error) {
	var existing models.Vote
	err := database.ForUpdate(tx.WithContext(ctx)).
		Where("voter_id = ? AND target_type = ? AND target_id = ?", actorID, targetType, targetID).
		First(&existing).Error

	switch {
	case database.IsNotFound(err):
		v := models.Vote{VoterID: actorID, TargetType: targetType, TargetID: targetID, Polarity: polarity}
		if err := tx.WithContext(ctx).Create(&v).Error; err != nil {
			return Result{}, "", "", fmt.Errorf("insert vote: %w", err)
		}
		return Result{Action: ActionCreated, Polarity: polarity}, "", polarity, nil

	case err != nil:
		return Result{}, "", "", fmt.Errorf("load vote: %w", err)

	case existing.Polarity == polarity:
		if err := tx.WithContext(ctx).Delete(&existing).Error; err != nil {
			return Result{}, "", "", fmt.Errorf("delete vote %d: %w", existing.ID, err)
		}
		return Result{Action: ActionRemoved}, polarity, "", nil

	default:
		from := existing.Polarity
		err := tx.WithContext(ctx).Model(&existing).Update("polarity", polarity).Error
		if err != nil {
			return Result{}, "", "", fmt.Errorf("update vote %d: %w", existing.ID, err)
		}
		return Result{Action: ActionUpdated, Polarity: polarity}, from, polarity, nil
	}
}

// Tally counts the votes on a target. viewerID 0 leaves UserVote empty.
func (s *Service) Tally(ctx context.Context, targetType models.TargetType, targetID, viewerID int) (Tally, error) {
	const op = "votes.Tally"

	if _, err := models.ParseTargetType(string(targetType)); err != nil {
		return Tally{}, apperror.InvalidArgument(op, "Invalid target type")
	}

	var rows []struct {
		Polarity models.Polarity
		N        int
	}
	err := s.db.DB.WithContext(ctx).Model(&models.Vote{}).
		Select("polarity, COUNT(*) AS n").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Group("polarity").
		Scan(&rows).Error
	if err != nil {
		return Tally{}, apperror.Internal(op, err)
	}

	var t Tally
	for _, r := range rows {
		switch r.Polarity {
		case models.PolarityUp:
			t.Upvotes = r.N
		case models.PolarityDown:
			t.Downvotes = r.N
		}
	}
	t.Score = t.Upvotes - t.Downvotes

	if viewerID > 0 {
		var v models.Vote
		err := s.db.DB.WithContext(ctx).
			Where("voter_id = ? AND target_type = ? AND target_id = ?", viewerID, targetType, targetID).
			Limit(1).Find(&v).Error
		if err != nil {
			return Tally{}, apperror.Internal(op, err)
		}
		t.UserVote = v.Polarity
	}
	return t, nil
}

// PurgeTarget deletes every vote on a deleted target. Reputation earned from
// those votes is kept.
func (s *Service) PurgeTarget(ctx context.Context, tx *gorm.DB, targetType models.TargetType, targetIDs ...int) (int64, error) {
	if len(targetIDs) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Delete(&models.Vote{})
	if res.Error != nil {
		return 0, apperror.Internal("votes.PurgeTarget", res.Error)
	}
	return res.RowsAffected, nil
}

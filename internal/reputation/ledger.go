// Package reputation maintains each user's score as the clamped fold of
// signed deltas. Every mutation is written as a ReputationEntry keyed by a
// cause ref, so a score can always be explained from its entries.
//
// A cause has at most one live grant. Applying a cause that is already live
// is a no-op, and reversing a cause that is not live is a no-op, which keeps
// vote toggles and accept/unaccept sequences consistent under retries.
//
// Scores are floored at zero: new = max(0, old + amount). Reversal applies
// -amount under the same rule, so a grant and its reversal are not
// symmetric once a score has been clamped.
package reputation

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

// Point values.
const (
	UpvoteReceived = 5

	// DownvoteReceived is zero: receiving a downvote costs nothing.
	DownvoteReceived = 0

	AcceptedAnswerBonus = 15
)

// VoteCause identifies the delta raised by one voter's polarity on a target.
func VoteCause(voterID int, targetType models.TargetType, targetID int, p models.Polarity) string {
	return fmt.Sprintf("vote:%d:%s:%d:%s", voterID, targetType, targetID, p)
}

// AcceptCause identifies the acceptance bonus of an answer on a question.
func AcceptCause(questionID, answerID int) string {
	return fmt.Sprintf("accept:%d:%d", questionID, answerID)
}

// VotePoints returns the score effect of receiving a vote of polarity p.
func VotePoints(p models.Polarity) int {
	if p == models.PolarityUp {
		return UpvoteReceived
	}
	return DownvoteReceived
}

// Clamp floors a score at zero.
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

// Change describes the effect of one ApplyDelta or Reverse call.
type Change struct {
	// Applied is false when the call was a no-op.
	Applied bool
	UserID  int
	Before  int
	After   int
}

// Ledger is the only writer of users.reputation_points.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// LockUsers takes row locks on the given users in ascending id order.
// Callers touching more than one score lock up front so concurrent
// transactions agree on the order.
func (l *Ledger) LockUsers(ctx context.Context, tx *gorm.DB, ids ...int) error {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	var prev int
	for i, id := range sorted {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		if _, err := l.lockUser(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) lockUser(ctx context.Context, tx *gorm.DB, userID int) (models.User, error) {
	var u models.User
	err := database.ForUpdate(tx.WithContext(ctx)).Select("id", "reputation_points").First(&u, userID).Error
	if database.IsNotFound(err) {
		return u, apperror.NotFound("reputation.lockUser", "User not found")
	}
	if err != nil {
		return u, apperror.Internal("reputation.lockUser", fmt.Errorf("lock user %d: %w", userID, err))
	}
	return u, nil
}

func liveEntry(ctx context.Context, tx *gorm.DB, causeRef string) (*models.ReputationEntry, error) {
	var entry models.ReputationEntry
	err := tx.WithContext(ctx).
		Where("cause_ref = ? AND reverses_id IS NULL AND reversed = ?", causeRef, false).
		First(&entry).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load live entry %s: %w", causeRef, err)
	}
	return &entry, nil
}

// ApplyDelta adds amount to the user's score, clamped at zero, unless a live
// grant for causeRef already exists. A zero amount records nothing.
func (l *Ledger) ApplyDelta(ctx context.Context, tx *gorm.DB, userID, amount int, causeRef string) (Change, error) {
	const op = "reputation.ApplyDelta"

	if amount == 0 {
		return Change{UserID: userID}, nil
	}

	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return Change{}, err
	}

	existing, err := liveEntry(ctx, tx, causeRef)
	if err != nil {
		return Change{}, apperror.Internal(op, err)
	}
	if existing != nil {
		return Change{UserID: userID, Before: u.ReputationPoints, After: u.ReputationPoints}, nil
	}

	entry := models.ReputationEntry{
		UserID:      userID,
		CauseRef:    causeRef,
		Amount:      amount,
		ScoreBefore: u.ReputationPoints,
		ScoreAfter:  Clamp(u.ReputationPoints + amount),
	}
	if err := l.write(ctx, tx, &entry); err != nil {
		return Change{}, apperror.Internal(op, err)
	}

	return Change{Applied: true, UserID: userID, Before: entry.ScoreBefore, After: entry.ScoreAfter}, nil
}

// Reverse undoes the live grant for causeRef by applying its negation with
// the same clamp. Reversing a cause with no live grant is a no-op.
func (l *Ledger) Reverse(ctx context.Context, tx *gorm.DB, causeRef string) (Change, error) {
	const op = "reputation.Reverse"

	grant, err := liveEntry(ctx, tx, causeRef)
	if err != nil {
		return Change{}, apperror.Internal(op, err)
	}
	if grant == nil {
		return Change{}, nil
	}

	u, err := l.lockUser(ctx, tx, grant.UserID)
	if err != nil {
		return Change{}, err
	}

	// Re-read under the user lock; a concurrent reversal may have won.
	grant, err = liveEntry(ctx, tx, causeRef)
	if err != nil {
		return Change{}, apperror.Internal(op, err)
	}
	if grant == nil {
		return Change{UserID: u.ID, Before: u.ReputationPoints, After: u.ReputationPoints}, nil
	}

	res := tx.WithContext(ctx).Model(&models.ReputationEntry{}).
		Where("id = ? AND reversed = ?", grant.ID, false).
		Update("reversed", true)
	if res.Error != nil {
		return Change{}, apperror.Internal(op, fmt.Errorf("mark entry %d reversed: %w", grant.ID, res.Error))
	}

	reversal := models.ReputationEntry{
		UserID:      grant.UserID,
		CauseRef:    causeRef,
		Amount:      -grant.Amount,
		ScoreBefore: u.ReputationPoints,
		ScoreAfter:  Clamp(u.ReputationPoints - grant.Amount),
		ReversesID:  &grant.ID,
	}
	if err := l.write(ctx, tx, &reversal); err != nil {
		return Change{}, apperror.Internal(op, err)
	}

	return Change{Applied: true, UserID: grant.UserID, Before: reversal.ScoreBefore, After: reversal.ScoreAfter}, nil
}

func (l *Ledger) write(ctx context.Context, tx *gorm.DB, entry *models.ReputationEntry) error {
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.CauseRef, err)
	}
	err := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", entry.UserID).
		Update("reputation_points", entry.ScoreAfter).Error
	if err != nil {
		return fmt.Errorf("update score of user %d: %w", entry.UserID, err)
	}
	return nil
}

// History returns a user's most recent ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, db *gorm.DB, userID, limit int) ([]models.ReputationEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.ReputationEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperror.Internal("reputation.History", err)
	}
	return entries, nil
}

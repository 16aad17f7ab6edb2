package reputation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/testutil"
)

func apply(t *testing.T, d *database.Database, l *Ledger, userID, amount int, cause string) Change {
	t.Helper()
	var ch Change
	err := d.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		ch, err = l.ApplyDelta(context.Background(), tx, userID, amount, cause)
		return err
	})
	require.NoError(t, err)
	return ch
}

func reverse(t *testing.T, d *database.Database, l *Ledger, cause string) Change {
	t.Helper()
	var ch Change
	err := d.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		ch, err = l.Reverse(context.Background(), tx, cause)
		return err
	})
	require.NoError(t, err)
	return ch
}

func TestApplyDelta_AddsPoints(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 0)

	ch := apply(t, d, l, bob.ID, UpvoteReceived, "vote:1:answer:9:up")

	assert.True(t, ch.Applied)
	assert.Equal(t, 0, ch.Before)
	assert.Equal(t, 5, ch.After)
	assert.Equal(t, 5, testutil.Score(t, d, bob.ID))
}

func TestApplyDelta_SameCauseIsIdempotent(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 0)

	apply(t, d, l, bob.ID, AcceptedAnswerBonus, AcceptCause(1, 2))
	ch := apply(t, d, l, bob.ID, AcceptedAnswerBonus, AcceptCause(1, 2))

	assert.False(t, ch.Applied)
	assert.Equal(t, 15, testutil.Score(t, d, bob.ID))
}

func TestApplyDelta_ZeroAmountWritesNothing(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 3)

	ch := apply(t, d, l, bob.ID, DownvoteReceived, "vote:1:question:4:down")
	assert.False(t, ch.Applied)

	var count int64
	require.NoError(t, d.DB.Model(&models.ReputationEntry{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, 3, testutil.Score(t, d, bob.ID))
}

func TestApplyDelta_ClampsAtZero(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 10)

	ch := apply(t, d, l, bob.ID, -15, "penalty:1")

	assert.True(t, ch.Applied)
	assert.Equal(t, 0, ch.After)
	assert.Equal(t, 0, testutil.Score(t, d, bob.ID))
}

func TestApplyDelta_UnknownUser(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()

	err := d.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := l.ApplyDelta(context.Background(), tx, 404, 5, "vote:1:answer:1:up")
		return err
	})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestReverse_RestoresScoreAndFreesCause(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 2)
	cause := AcceptCause(3, 7)

	apply(t, d, l, bob.ID, AcceptedAnswerBonus, cause)
	ch := reverse(t, d, l, cause)

	assert.True(t, ch.Applied)
	assert.Equal(t, 17, ch.Before)
	assert.Equal(t, 2, ch.After)
	assert.Equal(t, 2, testutil.Score(t, d, bob.ID))

	// accept, unaccept, accept again
	ch = apply(t, d, l, bob.ID, AcceptedAnswerBonus, cause)
	assert.True(t, ch.Applied)
	assert.Equal(t, 17, testutil.Score(t, d, bob.ID))
}

func TestReverse_WithoutLiveGrantIsNoop(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 4)
	cause := VoteCause(1, models.TargetAnswer, 2, models.PolarityUp)

	assert.False(t, reverse(t, d, l, cause).Applied)

	apply(t, d, l, bob.ID, UpvoteReceived, cause)
	reverse(t, d, l, cause)
	assert.False(t, reverse(t, d, l, cause).Applied, "double reversal must not double-count")
	assert.Equal(t, 4, testutil.Score(t, d, bob.ID))
}

func TestReverse_AsymmetricAfterClamp(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 0)
	cause := AcceptCause(1, 1)

	apply(t, d, l, bob.ID, AcceptedAnswerBonus, cause)
	apply(t, d, l, bob.ID, -20, "penalty:1")
	require.Equal(t, 0, testutil.Score(t, d, bob.ID))

	ch := reverse(t, d, l, cause)
	assert.Equal(t, 0, ch.After, "reversal clamps at zero instead of going negative")
}

func TestEntriesFoldToScore(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 0)

	apply(t, d, l, bob.ID, 5, "vote:1:answer:1:up")
	apply(t, d, l, bob.ID, 5, "vote:2:answer:1:up")
	apply(t, d, l, bob.ID, 15, AcceptCause(1, 1))
	reverse(t, d, l, "vote:1:answer:1:up")
	reverse(t, d, l, AcceptCause(1, 1))

	entries, err := l.History(context.Background(), d.DB, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	score := 0
	for i := len(entries) - 1; i >= 0; i-- {
		assert.Equal(t, score, entries[i].ScoreBefore)
		score = Clamp(score + entries[i].Amount)
		assert.Equal(t, score, entries[i].ScoreAfter)
	}
	assert.Equal(t, score, testutil.Score(t, d, bob.ID))
	assert.Equal(t, 5, score)
}

func TestLockUsers_UnknownUser(t *testing.T) {
	d := testutil.NewTestDB(t)
	l := NewLedger()
	bob := testutil.CreateUser(t, d, "bob", 0)

	err := d.WithTx(context.Background(), func(tx *gorm.DB) error {
		return l.LockUsers(context.Background(), tx, bob.ID, bob.ID, 999)
	})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestVotePoints(t *testing.T) {
	assert.Equal(t, 5, VotePoints(models.PolarityUp))
	assert.Equal(t, 0, VotePoints(models.PolarityDown))
}

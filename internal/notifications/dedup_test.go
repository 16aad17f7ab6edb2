package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/testutil"
)

// insertRaw bypasses Notify so tests can plant duplicates the way concurrent
// writers or older releases could have left them.
func insertRaw(t *testing.T, d *database.Database, n models.Notification) models.Notification {
	t.Helper()
	require.NoError(t, d.DB.Create(&n).Error)
	return n
}

func remainingIDs(t *testing.T, d *database.Database) []int {
	t.Helper()
	var ids []int
	require.NoError(t, d.DB.Model(&models.Notification{}).Order("id").Pluck("id", &ids).Error)
	return ids
}

func TestSweep_KeepsNewestPerGroup(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	alice := testutil.CreateUser(t, d, "alice", 0)
	bob := testutil.CreateUser(t, d, "bob", 0)
	q := testutil.CreateQuestion(t, d, alice.ID)
	a := testutil.CreateAnswer(t, d, q.ID, bob.ID)
	link := models.AnswerLink(q.ID, a.ID)

	base := time.Now().UTC().Add(-time.Hour)
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "old", Link: link, CreatedAt: base})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "older", Link: link, CreatedAt: base.Add(-time.Minute)})
	newest := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "new", Link: link, CreatedAt: base.Add(time.Minute)})
	other := insertRaw(t, d, models.Notification{RecipientID: alice.ID, Type: models.NotificationVote, Title: "alice", Link: link, CreatedAt: base})

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Superseded)
	assert.Equal(t, []int{newest.ID, other.ID}, remainingIDs(t, d))
}

func TestSweep_TieOnCreatedAtKeepsHighestID(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	bob := testutil.CreateUser(t, d, "bob", 0)

	at := time.Now().UTC().Truncate(time.Second)
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationSystem, Title: "a", CreatedAt: at})
	second := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationSystem, Title: "b", CreatedAt: at})

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Superseded)
	assert.Equal(t, []int{second.ID}, remainingIDs(t, d))
}

func TestSweep_RemovesOrphans(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	alice := testutil.CreateUser(t, d, "alice", 0)
	bob := testutil.CreateUser(t, d, "bob", 0)
	q := testutil.CreateQuestion(t, d, alice.ID)
	gone := testutil.CreateQuestion(t, d, alice.ID)
	a := testutil.CreateAnswer(t, d, q.ID, bob.ID)

	live := insertRaw(t, d, models.Notification{RecipientID: alice.ID, Type: models.NotificationAnswer, Title: "answer", Link: models.QuestionLink(q.ID)})
	liveAnswer := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "vote", Link: models.AnswerLink(q.ID, a.ID)})
	insertRaw(t, d, models.Notification{RecipientID: alice.ID, Type: models.NotificationVote, Title: "vote", Link: models.QuestionLink(gone.ID)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "missing answer", Link: models.AnswerLink(q.ID, a.ID+100)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationComment, Title: "wrong question", Link: models.AnswerLink(gone.ID, a.ID)})
	system := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationSystem, Title: "welcome", Link: "/settings"})

	// Question deleted outside the engine.
	require.NoError(t, d.DB.Delete(&models.Question{}, gone.ID).Error)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.Orphaned)
	assert.Equal(t, []int{live.ID, liveAnswer.ID, system.ID}, remainingIDs(t, d))
}

func TestSweep_AcceptedAnswerMustMatchCurrentState(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	alice := testutil.CreateUser(t, d, "alice", 0)
	bob := testutil.CreateUser(t, d, "bob", 0)
	carol := testutil.CreateUser(t, d, "carol", 0)
	q := testutil.CreateQuestion(t, d, alice.ID)
	accepted := testutil.CreateAnswer(t, d, q.ID, bob.ID)
	displaced := testutil.CreateAnswer(t, d, q.ID, carol.ID)

	require.NoError(t, d.DB.Model(&models.Answer{}).Where("id = ?", accepted.ID).Update("is_accepted", true).Error)
	require.NoError(t, d.DB.Model(&models.Question{}).Where("id = ?", q.ID).
		Updates(map[string]any{"accepted_answer_id": accepted.ID, "has_accepted_answer": true}).Error)

	backed := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationAcceptedAnswer, Title: "accepted", Link: models.AnswerLink(q.ID, accepted.ID)})
	insertRaw(t, d, models.Notification{RecipientID: carol.ID, Type: models.NotificationAcceptedAnswer, Title: "stale", Link: models.AnswerLink(q.ID, displaced.ID)})
	insertRaw(t, d, models.Notification{RecipientID: carol.ID, Type: models.NotificationAcceptedAnswer, Title: "wrong recipient", Link: models.AnswerLink(q.ID, accepted.ID)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationAcceptedAnswer, Title: "no answer in link", Link: models.QuestionLink(q.ID)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationAcceptedAnswer, Title: "unparseable", Link: "accepted"})

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.StaleAccepted)
	assert.Equal(t, []int{backed.ID}, remainingIDs(t, d))
}

func TestSweep_IsFixedPoint(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	alice := testutil.CreateUser(t, d, "alice", 0)
	bob := testutil.CreateUser(t, d, "bob", 0)
	q := testutil.CreateQuestion(t, d, alice.ID)
	a := testutil.CreateAnswer(t, d, q.ID, bob.ID)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "vote", Link: models.AnswerLink(q.ID, a.ID), CreatedAt: base.Add(time.Duration(i) * time.Second)})
		insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationAcceptedAnswer, Title: "accepted", Link: models.AnswerLink(q.ID, a.ID), CreatedAt: base.Add(time.Duration(i) * time.Second)})
		insertRaw(t, d, models.Notification{RecipientID: alice.ID, Type: models.NotificationVote, Title: "vote", Link: models.QuestionLink(q.ID + 50 + i)})
	}

	first, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Greater(t, first.Total(), int64(0))

	second, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, second)
}

func TestSweep_ManyBatches(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	bob := testutil.CreateUser(t, d, "bob", 0)

	rows := make([]models.Notification, 0, sweepBatchSize*2+10)
	for i := 0; i < cap(rows); i++ {
		rows = append(rows, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "v", Link: models.QuestionLink(10000 + i)})
	}
	require.NoError(t, d.DB.CreateInBatches(rows, 200).Error)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(rows)), report.Orphaned)
	assert.Empty(t, remainingIDs(t, d))
}

func TestPurgeQuestionAndAnswer(t *testing.T) {
	d := testutil.NewTestDB(t)
	svc := NewService(d, nil)
	bob := testutil.CreateUser(t, d, "bob", 0)

	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationAnswer, Title: "q1", Link: models.QuestionLink(1)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "q1a2", Link: models.AnswerLink(1, 2)})
	keep := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "q12", Link: models.QuestionLink(12)})
	insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "q12a5", Link: models.AnswerLink(12, 5)})
	keep2 := insertRaw(t, d, models.Notification{RecipientID: bob.ID, Type: models.NotificationVote, Title: "q12a15", Link: models.AnswerLink(12, 15)})

	n, err := svc.PurgeQuestion(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.PurgeAnswer(context.Background(), 12, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []int{keep.ID, keep2.ID}, remainingIDs(t, d))
}

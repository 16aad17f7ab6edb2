package notifications

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

const sweepBatchSize = 500

// Report counts the rows removed by one Sweep.
type Report struct {
	Superseded    int64 `json:"superseded"`
	Orphaned      int64 `json:"orphaned"`
	StaleAccepted int64 `json:"stale_accepted"`
}

// Total returns the number of rows removed.
func (r Report) Total() int64 {
	return r.Superseded + r.Orphaned + r.StaleAccepted
}

// Sweep is the full maintenance pass. It
//   - keeps only the newest row of each (recipient, type, link) group,
//   - removes rows whose link points at a question or answer that no longer exists,
//   - removes accepted_answer rows not backed by an answer that is currently
//     accepted and authored by the recipient.
//
// Running Sweep twice in a row removes nothing the second time.
func (s *Service) Sweep(ctx context.Context) (Report, error) {
	const op = "notifications.Sweep"
	var report Report

	db := s.db.DB.WithContext(ctx)

	res := db.Where(`EXISTS (
		SELECT 1 FROM notifications newer
		WHERE newer.recipient_id = notifications.recipient_id
		  AND newer.type = notifications.type
		  AND newer.link = notifications.link
		  AND (newer.created_at > notifications.created_at
		       OR (newer.created_at = notifications.created_at AND newer.id > notifications.id))
	)`).Delete(&models.Notification{})
	if res.Error != nil {
		return report, apperror.Internal(op, fmt.Errorf("delete superseded: %w", res.Error))
	}
	report.Superseded = res.RowsAffected

	var batchErr error
	var rows []models.Notification
	res = db.Select("id", "recipient_id", "type", "link").
		Where("link LIKE ? OR type = ?", "/questions/%", models.NotificationAcceptedAnswer).
		FindInBatches(&rows, sweepBatchSize, func(tx *gorm.DB, _ int) error {
			orphaned, stale, err := s.classify(ctx, rows)
			if err != nil {
				batchErr = err
				return err
			}
			n, err := s.deleteIDs(ctx, orphaned)
			if err != nil {
				batchErr = err
				return err
			}
			report.Orphaned += n
			n, err = s.deleteIDs(ctx, stale)
			if err != nil {
				batchErr = err
				return err
			}
			report.StaleAccepted += n
			return nil
		})
	if batchErr != nil {
		return report, apperror.Internal(op, batchErr)
	}
	if res.Error != nil {
		return report, apperror.Internal(op, fmt.Errorf("scan notifications: %w", res.Error))
	}

	return report, nil
}

type answerState struct {
	QuestionID int
	AuthorID   int
	IsAccepted bool
}

// classify splits a batch into orphaned rows and stale accepted_answer rows.
func (s *Service) classify(ctx context.Context, rows []models.Notification) (orphaned, stale []int, err error) {
	questionIDs := make(map[int]struct{})
	answerIDs := make(map[int]struct{})
	for _, n := range rows {
		if q, a, ok := models.ParseLink(n.Link); ok {
			questionIDs[q] = struct{}{}
			if a > 0 {
				answerIDs[a] = struct{}{}
			}
		}
	}

	accepted := make(map[int]*int) // question id -> accepted answer id
	if len(questionIDs) > 0 {
		var qs []models.Question
		err := s.db.DB.WithContext(ctx).Select("id", "accepted_answer_id").
			Where("id IN ?", keys(questionIDs)).Find(&qs).Error
		if err != nil {
			return nil, nil, fmt.Errorf("load questions: %w", err)
		}
		for _, q := range qs {
			accepted[q.ID] = q.AcceptedAnswerID
		}
	}

	answers := make(map[int]answerState)
	if len(answerIDs) > 0 {
		var as []models.Answer
		err := s.db.DB.WithContext(ctx).Select("id", "question_id", "author_id", "is_accepted").
			Where("id IN ?", keys(answerIDs)).Find(&as).Error
		if err != nil {
			return nil, nil, fmt.Errorf("load answers: %w", err)
		}
		for _, a := range as {
			answers[a.ID] = answerState{QuestionID: a.QuestionID, AuthorID: a.AuthorID, IsAccepted: a.IsAccepted}
		}
	}

	for _, n := range rows {
		q, a, ok := models.ParseLink(n.Link)
		if ok {
			acceptedID, questionExists := accepted[q]
			ans, answerExists := answers[a]
			if !questionExists || (a > 0 && (!answerExists || ans.QuestionID != q)) {
				orphaned = append(orphaned, n.ID)
				continue
			}
			if n.Type != models.NotificationAcceptedAnswer {
				continue
			}
			backed := a > 0 &&
				ans.IsAccepted &&
				ans.AuthorID == n.RecipientID &&
				acceptedID != nil && *acceptedID == a
			if !backed {
				stale = append(stale, n.ID)
			}
			continue
		}
		if n.Type == models.NotificationAcceptedAnswer {
			stale = append(stale, n.ID)
		}
	}
	return orphaned, stale, nil
}

func (s *Service) deleteIDs(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeQuestion removes notifications about a deleted question and its answers.
func (s *Service) PurgeQuestion(ctx context.Context, questionID int) (int64, error) {
	link := models.QuestionLink(questionID)
	res := s.db.DB.WithContext(ctx).
		Where("link = ? OR link LIKE ?", link, link+"#%").
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperror.Internal("notifications.PurgeQuestion", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeAnswer removes notifications about a deleted answer.
func (s *Service) PurgeAnswer(ctx context.Context, questionID, answerID int) (int64, error) {
	res := s.db.DB.WithContext(ctx).
		Where("link = ?", models.AnswerLink(questionID, answerID)).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, apperror.Internal("notifications.PurgeAnswer", res.Error)
	}
	return res.RowsAffected, nil
}

func keys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

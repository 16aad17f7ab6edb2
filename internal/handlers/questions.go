package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/content"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/middleware"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/votes"
)

type QuestionHandler struct {
	content *content.Service
	votes   *votes.Service
}

func NewQuestionHandler(content *content.Service, votes *votes.Service) *QuestionHandler {
	return &QuestionHandler{content: content, votes: votes}
}

// GetQuestion returns a question with its answers and vote tallies
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewerID, _ := middleware.UserID(c)

	q, answers, err := h.content.GetQuestion(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	tally, err := h.votes.Tally(ctx, models.TargetQuestion, q.ID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Build each response manually so tallies sit next to the fields.
	answerResponses := make([]gin.H, 0, len(answers))
	for _, a := range answers {
		at, err := h.votes.Tally(ctx, models.TargetAnswer, a.ID, viewerID)
		if err != nil {
			respondError(c, err)
			return
		}
		answerResponses = append(answerResponses, gin.H{
			"id":          a.ID,
			"question_id": a.QuestionID,
			"author_id":   a.AuthorID,
			"author":      a.Author,
			"body":        a.Body,
			"is_accepted": a.IsAccepted,
			"upvotes":     at.Upvotes,
			"downvotes":   at.Downvotes,
			"user_vote":   at.UserVote,
			"created_at":  a.CreatedAt,
			"updated_at":  a.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                  q.ID,
		"title":               q.Title,
		"body":                q.Body,
		"author_id":           q.AuthorID,
		"author":              q.Author,
		"accepted_answer_id":  q.AcceptedAnswerID,
		"has_accepted_answer": q.HasAcceptedAnswer,
		"upvotes":             tally.Upvotes,
		"downvotes":           tally.Downvotes,
		"user_vote":           tally.UserVote,
		"answers":             answerResponses,
		"created_at":          q.CreatedAt,
		"updated_at":          q.UpdatedAt,
	})
}

// CreateQuestion creates a new question (PROTECTED - requires authentication)
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	const op = "handlers.CreateQuestion"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}

	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.InvalidArgument(op, "Title is required"))
		return
	}

	q, err := h.content.CreateQuestion(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// DeleteQuestion deletes a question (PROTECTED - requires ownership)
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	const op = "handlers.DeleteQuestion"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.content.DeleteQuestion(c.Request.Context(), userID, c.GetString(middleware.ContextRole), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

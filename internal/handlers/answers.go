package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/acceptance"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/content"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/middleware"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

type AnswerHandler struct {
	content    *content.Service
	acceptance *acceptance.Service
}

func NewAnswerHandler(content *content.Service, acc *acceptance.Service) *AnswerHandler {
	return &AnswerHandler{content: content, acceptance: acc}
}

// CreateAnswer posts an answer to a question (PROTECTED)
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	const op = "handlers.CreateAnswer"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.InvalidArgument(op, "Body is required"))
		return
	}

	a, err := h.content.CreateAnswer(c.Request.Context(), userID, questionID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// AcceptAnswer toggles acceptance of an answer (PROTECTED - question author only)
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	const op = "handlers.AcceptAnswer"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}
	answerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.acceptance.Toggle(c.Request.Context(), answerID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"action":      res.Outcome,
		"question_id": res.QuestionID,
		"answer_id":   res.AnswerID,
	}
	if res.DisplacedID != 0 {
		resp["displaced_answer_id"] = res.DisplacedID
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteAnswer deletes an answer (PROTECTED - requires ownership)
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	const op = "handlers.DeleteAnswer"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.content.DeleteAnswer(c.Request.Context(), userID, c.GetString(middleware.ContextRole), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted successfully"})
}

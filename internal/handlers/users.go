package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
)

type UserHandler struct {
	db     *database.Database
	ledger *reputation.Ledger
}

func NewUserHandler(db *database.Database, ledger *reputation.Ledger) *UserHandler {
	return &UserHandler{db: db, ledger: ledger}
}

// GetUserProfile returns a user's profile with recent reputation history
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	db := h.db.DB.WithContext(ctx)

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, apperror.Internal("handlers.GetUserProfile", err))
		return
	}

	// Get question/answer counts
	var questionCount, answerCount, acceptedCount int64
	db.Model(&models.Question{}).Where("author_id = ?", userID).Count(&questionCount)
	db.Model(&models.Answer{}).Where("author_id = ?", userID).Count(&answerCount)
	db.Model(&models.Answer{}).Where("author_id = ? AND is_accepted = ?", userID, true).Count(&acceptedCount)

	limit, _ := strconv.Atoi(c.Query("history"))
	history, err := h.ledger.History(ctx, h.db.DB, userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":                user.ID,
			"username":          user.Username,
			"role":              user.Role,
			"reputation_points": user.ReputationPoints,
			"created_at":        user.CreatedAt,
		},
		"question_count":     questionCount,
		"answer_count":       answerCount,
		"accepted_count":     acceptedCount,
		"reputation_history": history,
	})
}

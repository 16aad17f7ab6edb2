package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/acceptance"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/audit"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/content"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/database"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/reputation"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/votes"
)

// Deps are the services the handlers call into.
type Deps struct {
	DB            *database.Database
	Votes         *votes.Service
	Acceptance    *acceptance.Service
	Content       *content.Service
	Ledger        *reputation.Ledger
	Notifications *notifications.Service
	Sweeper       *notifications.Sweeper
	Auditor       *audit.Auditor
}

// Handler combines all handler types
type Handler struct {
	Vote         *VoteHandler
	Question     *QuestionHandler
	Answer       *AnswerHandler
	User         *UserHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Deps) *Handler {
	return &Handler{
		Vote:         NewVoteHandler(deps.Votes),
		Question:     NewQuestionHandler(deps.Content, deps.Votes),
		Answer:       NewAnswerHandler(deps.Content, deps.Acceptance),
		User:         NewUserHandler(deps.DB, deps.Ledger),
		Notification: NewNotificationHandler(deps.Notifications),
		Admin:        NewAdminHandler(deps.Sweeper, deps.Auditor),
	}
}

// respondError writes err with the status of its kind. Internal causes are
// logged, not returned.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= 500 {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperror.MessageOf(err)})
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, apperror.InvalidArgument("handlers.paramID", "Invalid "+name))
		return 0, false
	}
	return id, true
}

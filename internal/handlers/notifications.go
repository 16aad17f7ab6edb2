package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/middleware"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
)

type NotificationHandler struct {
	notifications *notifications.Service
}

func NewNotificationHandler(n *notifications.Service) *NotificationHandler {
	return &NotificationHandler{notifications: n}
}

// GetNotifications lists the caller's notifications (PROTECTED)
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized("handlers.GetNotifications"))
		return
	}
	ctx := c.Request.Context()

	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.notifications.List(ctx, userID, c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread_count": unread})
}

// MarkRead marks one notification read (PROTECTED)
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized("handlers.MarkRead"))
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead marks every notification of the caller read (PROTECTED)
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized("handlers.MarkAllRead"))
		return
	}

	n, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

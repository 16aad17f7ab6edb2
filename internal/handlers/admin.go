package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/audit"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/notifications"
)

type AdminHandler struct {
	sweeper *notifications.Sweeper
	auditor *audit.Auditor
}

func NewAdminHandler(sweeper *notifications.Sweeper, auditor *audit.Auditor) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, auditor: auditor}
}

// SweepNotifications runs the notification maintenance pass now (ADMIN)
func (h *AdminHandler) SweepNotifications(c *gin.Context) {
	report, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, apperror.Ensure("handlers.SweepNotifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"superseded":     report.Superseded,
		"orphaned":       report.Orphaned,
		"stale_accepted": report.StaleAccepted,
		"total":          report.Total(),
	})
}

// AuditReputation checks every score against its ledger (ADMIN)
func (h *AdminHandler) AuditReputation(c *gin.Context) {
	report, err := h.auditor.Run(c.Request.Context())
	if err != nil {
		respondError(c, apperror.Ensure("handlers.AuditReputation", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/apperror"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/middleware"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/votes"
)

type VoteHandler struct {
	votes *votes.Service
}

func NewVoteHandler(v *votes.Service) *VoteHandler {
	return &VoteHandler{votes: v}
}

type castVoteRequest struct {
	TargetType string `json:"targetType" binding:"required"`
	TargetID   int    `json:"targetId" binding:"required"`
	VoteType   string `json:"voteType" binding:"required"`
}

// CastVote creates, flips or removes the caller's vote (PROTECTED)
func (h *VoteHandler) CastVote(c *gin.Context) {
	const op = "handlers.CastVote"

	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperror.Unauthorized(op))
		return
	}

	var input castVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperror.InvalidArgument(op, "targetType, targetId and voteType are required"))
		return
	}

	targetType, err := models.ParseTargetType(input.TargetType)
	if err != nil {
		respondError(c, apperror.InvalidArgument(op, "Invalid target type"))
		return
	}
	polarity, err := models.ParseVoteType(input.VoteType)
	if err != nil {
		respondError(c, apperror.InvalidArgument(op, "Invalid vote type"))
		return
	}

	res, err := h.votes.CastVote(c.Request.Context(), userID, targetType, input.TargetID, polarity)
	if err != nil {
		respondError(c, err)
		return
	}

	switch res.Action {
	case votes.ActionCreated:
		c.JSON(http.StatusCreated, gin.H{"action": res.Action, "voteType": res.Polarity.VoteType()})
	case votes.ActionUpdated:
		c.JSON(http.StatusOK, gin.H{"action": res.Action, "voteType": res.Polarity.VoteType()})
	default:
		c.JSON(http.StatusOK, gin.H{"action": res.Action})
	}
}

// GetVotes returns the tally of a target and the caller's vote, if any.
func (h *VoteHandler) GetVotes(c *gin.Context) {
	const op = "handlers.GetVotes"

	targetType, err := models.ParseTargetType(c.Query("targetType"))
	if err != nil {
		respondError(c, apperror.InvalidArgument(op, "Invalid target type"))
		return
	}
	targetID, err := strconv.Atoi(c.Query("targetId"))
	if err != nil || targetID <= 0 {
		respondError(c, apperror.InvalidArgument(op, "Invalid target id"))
		return
	}

	viewerID, _ := middleware.UserID(c)
	tally, err := h.votes.Tally(c.Request.Context(), targetType, targetID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"targetType": targetType,
		"targetId":   targetID,
		"upvotes":    tally.Upvotes,
		"downvotes":  tally.Downvotes,
		"score":      tally.Score,
	}
	if tally.UserVote != "" {
		resp["userVote"] = tally.UserVote.VoteType()
	}
	c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"net/http"
	"strconv"

	"race_arcade/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SubmitScore(c *gin.Context) {
	var sub domain.ScoreSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "invalid score payload")
		return
	}
	if !ownsWallet(c, sub.Wallet) {
		return
	}

	entry, err := h.Scores.Submit(c.Request.Context(), sub)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.ScoreResponse{Success: true, Entry: entry})
}

// DailyLeaderboard returns today's (UTC) top scores.
func (h *Handler) DailyLeaderboard(c *gin.Context) {
	list, err := h.Scores.Daily(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "period": "daily", "leaderboard": list})
}

func (h *Handler) GlobalLeaderboard(c *gin.Context) {
	list, err := h.Scores.Global(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "period": "all_time", "leaderboard": list})
}

// queryLimit reads ?limit=; the service clamps it, 0 means default.
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

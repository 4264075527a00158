package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ArchiveLeaderboard moves the daily board into history. Scheduler role only.
func (h *Handler) ArchiveLeaderboard(c *gin.Context) {
	res, err := h.Archiver.Archive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

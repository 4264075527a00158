package handlers

import (
	"net/http"

	"race_arcade/internal/domain"
	"race_arcade/internal/service"

	"github.com/gin-gonic/gin"
)

// GetCredits returns the wallet's balance. Unknown wallets read as zero.
func (h *Handler) GetCredits(c *gin.Context) {
	user, err := h.Ledger.Balance(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.CreditsResponse{
		Success:          true,
		WalletAddress:    user.WalletAddress,
		Credits:          user.Credits,
		TotalGamesPlayed: user.TotalGamesPlayed,
		TotalSpent:       user.TotalSpent.String(),
	})
}

// UseCredit spends credits to start a game session.
func (h *Handler) UseCredit(c *gin.Context) {
	var req domain.UseCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "walletAddress is required")
		return
	}

	if !ownsWallet(c, req.WalletAddress) {
		return
	}

	amount := int64(service.DefaultUseAmount)
	if req.Amount != nil {
		amount = *req.Amount
	}

	res, err := h.Ledger.UseCredits(c.Request.Context(), req.WalletAddress, amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.UseCreditResponse{
		Success:          true,
		SessionID:        res.SessionID,
		CreditsUsed:      res.CreditsUsed,
		RemainingCredits: res.RemainingCredits,
		TotalGamesPlayed: res.TotalGamesPlayed,
	})
}

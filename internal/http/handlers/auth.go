package handlers

import (
	"errors"
	"net/http"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/http/middleware"
	"race_arcade/internal/logger"
	"race_arcade/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletLogin exchanges a signed sign-in message for a player token.
func (h *Handler) WalletLogin(c *gin.Context) {
	var req domain.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "walletAddress, issuedAt and signature are required")
		return
	}

	now := time.Now()
	wallet, err := service.VerifyWalletProof(req, now)
	if err != nil {
		if errors.Is(err, service.ErrBadWalletProof) {
			logger.WithContext(c.Request.Context()).Warn("wallet login rejected", "wallet", req.WalletAddress, "error", err)
			c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Success: false, Error: "Wallet signature was not accepted.", Code: "unauthorized"})
			return
		}
		respondError(c, err)
		return
	}

	token, expires, err := service.IssueWalletToken(wallet, now)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.WalletLoginResponse{Success: true, Token: token, ExpiresAt: expires.Unix()})
}

// ownsWallet rejects the request when a player token is present and belongs to
// a different wallet than address.
func ownsWallet(c *gin.Context, address string) bool {
	subject := c.GetString(middleware.WalletKey)
	if subject == "" {
		return true
	}
	wallet, err := domain.NormalizeWallet(address)
	if err == nil && wallet == subject {
		return true
	}
	c.JSON(http.StatusForbidden, domain.ErrorResponse{Success: false, Error: "This session belongs to a different wallet.", Code: "forbidden"})
	return false
}

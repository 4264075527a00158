package handlers

import (
	"net/http"

	"race_arcade/internal/domain"
	"race_arcade/internal/service"

	"github.com/gin-gonic/gin"
)

// VerifyPayment credits a confirmed on-chain payment. Replays of the same hash are refused.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req domain.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "transactionHash, userAddress and packageAmount are required")
		return
	}

	res, err := h.Verifier.VerifyPayment(c.Request.Context(), service.VerifyRequest{
		TxHash:         req.TransactionHash,
		UserAddress:    req.UserAddress,
		PackageCredits: req.PackageAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.VerifyPaymentResponse{
		Success:         true,
		Credits:         res.Credits,
		TransactionHash: res.TransactionHash,
	})
}

// Packages lists the credit packages on sale with their exact wei price.
func (h *Handler) Packages(c *gin.Context) {
	list := h.Catalog.Packages()
	out := make([]gin.H, 0, len(list))
	for _, p := range list {
		out = append(out, gin.H{
			"credits":   p.Credits,
			"price":     p.Price.String(),
			"price_wei": p.PriceWei().String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "packages": out})
}

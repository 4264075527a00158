package handlers

import (
	"context"
	"errors"
	"net/http"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
	"race_arcade/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, req service.VerifyRequest) (*service.VerifyResult, error)
}

type Ledger interface {
	Balance(ctx context.Context, address string) (*domain.User, error)
	UseCredits(ctx context.Context, address string, amount int64) (*service.UseCreditResult, error)
}

type Scores interface {
	Submit(ctx context.Context, sub domain.ScoreSubmission) (*domain.LeaderboardEntry, error)
	Daily(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Global(ctx context.Context, limit int) ([]domain.GlobalEntry, error)
}

type Archiver interface {
	Archive(ctx context.Context) (*domain.ArchiveResult, error)
}

type Handler struct {
	Verifier PaymentVerifier
	Ledger   Ledger
	Scores   Scores
	Archiver Archiver
	Catalog  *domain.Catalog
}

func NewHandler(verifier PaymentVerifier, ledger Ledger, scores Scores, archiver Archiver, catalog *domain.Catalog) *Handler {
	return &Handler{
		Verifier: verifier,
		Ledger:   ledger,
		Scores:   scores,
		Archiver: archiver,
		Catalog:  catalog,
	}
}

// respondError writes the API error body. Claim and input problems are 400,
// everything else is logged and reported as 500 without internals.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if !domain.IsValidationError(err) {
		status = http.StatusInternalServerError
		logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(), "error", err)
	}

	body := domain.ErrorResponse{
		Success: false,
		Error:   domain.UserMessage(err),
		Code:    domain.ErrorCode(err),
	}

	var short *domain.InsufficientCreditsError
	if errors.As(err, &short) {
		body.CurrentCredits = &short.Current
		body.Required = &short.Required
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, domain.ErrorResponse{Success: false, Error: msg, Code: "bad_request"})
}

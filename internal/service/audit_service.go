package service

import (
	"context"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
)

// AuditService handles audit logging
type AuditService struct {
	repo AuditStore
}

func NewAuditService(repo AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, wallet, action, category string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		Wallet:   wallet,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "wallet", wallet)
	}
}

// LogPurchase logs a credited payment
func (s *AuditService) LogPurchase(ctx context.Context, wallet, txHash string, credits int64, amount string) {
	s.Log(ctx, wallet, domain.AuditActionPurchase, domain.AuditCategoryPayment, map[string]interface{}{
		"tx_hash": txHash,
		"credits": credits,
		"amount":  amount,
	})
}

// LogDebit logs credits spent on a game session
func (s *AuditService) LogDebit(ctx context.Context, wallet, sessionID string, amount, remaining int64) {
	s.Log(ctx, wallet, domain.AuditActionBalanceDebit, domain.AuditCategoryBalance, map[string]interface{}{
		"session_id": sessionID,
		"amount":     amount,
		"remaining":  remaining,
	})
}

// LogScore logs an accepted score
func (s *AuditService) LogScore(ctx context.Context, wallet string, score int64, durationSeconds int) {
	s.Log(ctx, wallet, domain.AuditActionScoreSubmit, domain.AuditCategoryGame, map[string]interface{}{
		"score":            score,
		"duration_seconds": durationSeconds,
	})
}

// LogArchive logs a leaderboard archive run
func (s *AuditService) LogArchive(ctx context.Context, archived int64) {
	s.Log(ctx, "system", domain.AuditActionLeaderboardArch, domain.AuditCategoryLeaderboard, map[string]interface{}{
		"archived_count": archived,
	})
}

package service

import (
	"context"
	"errors"
	"fmt"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/google/uuid"
)

const (
	DefaultUseAmount = 1
	MaxUseAmount     = 10
)

// UseCreditResult is returned after credits are spent on a session.
type UseCreditResult struct {
	SessionID        string `json:"sessionId"`
	CreditsUsed      int64  `json:"creditsUsed"`
	RemainingCredits int64  `json:"remainingCredits"`
	TotalGamesPlayed int64  `json:"totalGamesPlayed"`
}

// LedgerService owns balance reads and debits. Credits are only ever added by
// PaymentVerifier, together with the transaction record that pays for them.
type LedgerService struct {
	users UserStore
	audit *AuditService
	feed  BalancePublisher
}

func NewLedgerService(users UserStore, audit *AuditService, feed BalancePublisher) *LedgerService {
	return &LedgerService{users: users, audit: audit, feed: feed}
}

// Balance returns the wallet's account, creating an empty one on first sight.
func (s *LedgerService) Balance(ctx context.Context, address string) (*domain.User, error) {
	wallet, err := domain.NormalizeWallet(address)
	if err != nil {
		return nil, err
	}
	u, err := s.users.EnsureUser(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return u, nil
}

// UseCredits debits amount credits and opens a game session.
// The balance never goes negative: a short balance returns *domain.InsufficientCreditsError.
func (s *LedgerService) UseCredits(ctx context.Context, address string, amount int64) (*UseCreditResult, error) {
	if amount < 1 || amount > MaxUseAmount {
		return nil, domain.ErrInvalidAmount
	}
	wallet, err := domain.NormalizeWallet(address)
	if err != nil {
		return nil, err
	}

	session := &domain.GameSession{ID: uuid.NewString()}
	u, err := s.users.Debit(ctx, wallet, amount, session)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			var current int64
			if existing, gerr := s.users.GetByWallet(ctx, wallet); gerr == nil && existing != nil {
				current = existing.Credits
			}
			return nil, &domain.InsufficientCreditsError{Current: current, Required: amount}
		}
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	CreditsDebited.Add(float64(amount))
	logger.WithContext(ctx).Info("credits used", "wallet", wallet, "amount", amount, "remaining", u.Credits, "session_id", session.ID)
	s.audit.LogDebit(ctx, wallet, session.ID, amount, u.Credits)
	if s.feed != nil {
		s.feed.PublishBalance(wallet, u)
	}

	return &UseCreditResult{
		SessionID:        session.ID,
		CreditsUsed:      amount,
		RemainingCredits: u.Credits,
		TotalGamesPlayed: u.TotalGamesPlayed,
	}, nil
}

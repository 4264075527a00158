package service

import (
	"context"
	"time"

	"race_arcade/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Storage and collaborator contracts. The pgx repositories and the Redis client satisfy them in production.

type UserStore interface {
	GetByWallet(ctx context.Context, wallet string) (*domain.User, error)
	EnsureUser(ctx context.Context, wallet string) (*domain.User, error)
	Debit(ctx context.Context, wallet string, amount int64, session *domain.GameSession) (*domain.User, error)
	TouchLastPlayed(ctx context.Context, wallet string, at time.Time) error
}

type PurchaseStore interface {
	HashExists(ctx context.Context, hash string) (bool, error)
	RecordPurchase(ctx context.Context, t *domain.Transaction) (*domain.User, error)
}

type LeaderboardStore interface {
	UpsertDaily(ctx context.Context, sub domain.ScoreSubmission, playDate time.Time) (*domain.LeaderboardEntry, error)
	TopDaily(ctx context.Context, playDate time.Time, limit int) ([]domain.LeaderboardEntry, error)
	TopAllTime(ctx context.Context, limit int) ([]domain.GlobalEntry, error)
	Archive(ctx context.Context, archivedAt time.Time) (int64, error)
}

type SessionStore interface {
	Close(ctx context.Context, id, wallet string) error
}

type AuditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// GlobalBoard is the Redis all-time board plus the score replay guard.
type GlobalBoard interface {
	RecordBest(ctx context.Context, wallet string, score int64) error
	TopGlobal(ctx context.Context, limit int64) ([]domain.GlobalEntry, error)
	ClaimFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

// ChainReader is the part of ethclient the verifier queries.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// BalancePublisher pushes a wallet's fresh balance to its live subscribers.
type BalancePublisher interface {
	PublishBalance(wallet string, user *domain.User)
}

// PurchaseNotifier is told about every credited purchase, e.g. to alert operators.
type PurchaseNotifier interface {
	NotifyPurchase(wallet string, pkg domain.Package, txHash string)
}

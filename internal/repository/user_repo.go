package repository

import (
	"context"
	"errors"
	"time"

	"race_arcade/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const userColumns = `wallet_address, credits, total_games_played, total_spent::text, last_played, created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetByWallet returns nil, nil when the wallet has never been seen.
func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, wallet)
	return scanUser(row)
}

// EnsureUser loads the user, creating an empty account on first sight.
func (r *UserRepository) EnsureUser(ctx context.Context, wallet string) (*domain.User, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO users (wallet_address) VALUES ($1) ON CONFLICT (wallet_address) DO NOTHING`,
		wallet,
	); err != nil {
		return nil, err
	}

	u, err := r.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("user vanished after insert")
	}
	return u, nil
}

// Debit spends credits and opens a game session in one transaction.
// The conditional UPDATE keeps the balance from going negative under concurrent debits.
func (r *UserRepository) Debit(ctx context.Context, wallet string, amount int64, session *domain.GameSession) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE users
		SET credits = credits - $2,
		    total_games_played = total_games_played + 1,
		    last_played = now()
		WHERE wallet_address = $1 AND credits >= $2
		RETURNING `+userColumns,
		wallet, amount,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrInsufficientCredits
	}

	if session != nil {
		if err := tx.QueryRow(ctx, `
			INSERT INTO game_sessions (id, wallet_address, credits_used)
			VALUES ($1, $2, $3)
			RETURNING started_at`,
			session.ID, wallet, amount,
		).Scan(&session.StartedAt); err != nil {
			return nil, err
		}
		session.Wallet = wallet
		session.CreditsUsed = amount
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

// TouchLastPlayed stamps the user's last activity.
func (r *UserRepository) TouchLastPlayed(ctx context.Context, wallet string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_played = $2 WHERE wallet_address = $1`, wallet, at)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		spent string
	)
	if err := row.Scan(&u.WalletAddress, &u.Credits, &u.TotalGamesPlayed, &spent, &u.LastPlayed, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	d, err := decimal.NewFromString(spent)
	if err != nil {
		return nil, err
	}
	u.TotalSpent = d
	return &u, nil
}

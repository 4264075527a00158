package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"race_arcade/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, amount::text, credits_added, transaction_hash, status, created_at`

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// HashExists reports whether any record, in any status, uses this hash.
func (r *TransactionRepository) HashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_hash = $1)`, hash,
	).Scan(&exists)
	return exists, err
}

// GetByHash returns nil, nil when no record exists.
func (r *TransactionRepository) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_hash = $1`, hash)
	return scanTransaction(row)
}

// GetByUser returns the wallet's purchase history, newest first.
func (r *TransactionRepository) GetByUser(ctx context.Context, wallet string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// SalesSince sums successful purchases created at or after since.
func (r *TransactionRepository) SalesSince(ctx context.Context, since time.Time) (*domain.SalesSummary, error) {
	var (
		sum     = domain.SalesSummary{Since: since}
		revenue string
	)
	err := r.db.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(credits_added), 0), COALESCE(sum(amount), 0)::text, count(DISTINCT user_id)
		FROM transactions
		WHERE status = 'success' AND created_at >= $1`, since,
	).Scan(&sum.Purchases, &sum.Credits, &revenue, &sum.Buyers)
	if err != nil {
		return nil, err
	}
	if sum.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("parse revenue %q: %w", revenue, err)
	}
	return &sum, nil
}

// RecordPurchase inserts the record as pending, credits the user, then marks the record success,
// all in one transaction. The pending row is written before the balance moves; a hash conflict
// returns ErrDuplicate and nothing is applied.
func (r *TransactionRepository) RecordPurchase(ctx context.Context, t *domain.Transaction) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, credits_added, transaction_hash, status)
		VALUES ($1, $2::numeric, $3, $4, 'pending')
		RETURNING id, created_at`,
		t.UserID, t.Amount.String(), t.CreditsAdded, t.TransactionHash,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert pending: %w", err)
	}
	t.Status = domain.TransactionStatusPending

	row := tx.QueryRow(ctx, `
		UPDATE users
		SET credits = credits + $2,
		    total_spent = total_spent + $3::numeric
		WHERE wallet_address = $1
		RETURNING `+userColumns,
		t.UserID, t.CreditsAdded, t.Amount.String(),
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("credit user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("credit user %s: no such user", t.UserID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE transactions SET status = 'success' WHERE id = $1`, t.ID); err != nil {
		return nil, fmt.Errorf("mark success: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatusSuccess
	return u, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t      domain.Transaction
		amount string
	)
	if err := row.Scan(&t.ID, &t.UserID, &amount, &t.CreditsAdded, &t.TransactionHash, &t.Status, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	t.Amount = d
	return &t, nil
}

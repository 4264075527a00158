package repository

import (
	"context"
	"errors"

	"race_arcade/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSessionNotOpen = errors.New("game session not found or already submitted")

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.GameSession, error) {
	var s domain.GameSession
	err := r.db.QueryRow(ctx, `
		SELECT id::text, wallet_address, credits_used, started_at, submitted_at
		FROM game_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.Wallet, &s.CreditsUsed, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Close marks an open session as submitted. Each session accepts one score.
func (r *SessionRepository) Close(ctx context.Context, id, wallet string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE game_sessions SET submitted_at = now()
		WHERE id = $1 AND wallet_address = $2 AND submitted_at IS NULL`, id, wallet)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotOpen
	}
	return nil
}

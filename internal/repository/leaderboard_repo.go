package repository

import (
	"context"
	"errors"
	"time"

	"race_arcade/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeaderboardRepository struct {
	db *pgxpool.Pool
}

func NewLeaderboardRepository(db *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// UpsertDaily records one finished game for the wallet on playDate.
// The stored best score and distance only move when the new score is higher.
func (r *LeaderboardRepository) UpsertDaily(ctx context.Context, sub domain.ScoreSubmission, playDate time.Time) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := r.db.QueryRow(ctx, `
		INSERT INTO daily_leaderboard (wallet_address, best_score, best_distance, games_played_today, team, play_date)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (wallet_address, play_date) DO UPDATE SET
			games_played_today = daily_leaderboard.games_played_today + 1,
			best_distance = CASE WHEN EXCLUDED.best_score > daily_leaderboard.best_score
				THEN EXCLUDED.best_distance ELSE daily_leaderboard.best_distance END,
			team = CASE WHEN EXCLUDED.best_score > daily_leaderboard.best_score
				THEN EXCLUDED.team ELSE daily_leaderboard.team END,
			best_score = GREATEST(daily_leaderboard.best_score, EXCLUDED.best_score)
		RETURNING wallet_address, best_score, best_distance, games_played_today, play_date`,
		sub.Wallet, sub.Score, sub.Distance, sub.Team, playDate,
	).Scan(&e.WalletAddress, &e.BestScore, &e.BestDistance, &e.GamesPlayedToday, &e.PlayDate)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetDaily returns nil, nil when the wallet has not played on playDate.
func (r *LeaderboardRepository) GetDaily(ctx context.Context, wallet string, playDate time.Time) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := r.db.QueryRow(ctx, `
		SELECT wallet_address, best_score, best_distance, games_played_today, play_date
		FROM daily_leaderboard
		WHERE wallet_address = $1 AND play_date = $2`, wallet, playDate,
	).Scan(&e.WalletAddress, &e.BestScore, &e.BestDistance, &e.GamesPlayedToday, &e.PlayDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// TopDaily returns the best rows for playDate.
func (r *LeaderboardRepository) TopDaily(ctx context.Context, playDate time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT wallet_address, best_score, best_distance, games_played_today, play_date
		FROM daily_leaderboard
		WHERE play_date = $1
		ORDER BY best_score DESC, best_distance DESC
		LIMIT $2`, playDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.WalletAddress, &e.BestScore, &e.BestDistance, &e.GamesPlayedToday, &e.PlayDate); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// TopAllTime ranks wallets by their best score across live and archived days.
// Used when the Redis board is unavailable.
func (r *LeaderboardRepository) TopAllTime(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT wallet_address, MAX(best_score) AS best
		FROM (
			SELECT wallet_address, best_score FROM daily_leaderboard
			UNION ALL
			SELECT wallet_address, best_score FROM daily_leaderboard_history
		) scores
		GROUP BY wallet_address
		ORDER BY best DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.GlobalEntry
	for rows.Next() {
		var e domain.GlobalEntry
		if err := rows.Scan(&e.WalletAddress, &e.BestScore); err != nil {
			return nil, err
		}
		e.Rank = int64(len(list) + 1)
		list = append(list, e)
	}
	return list, rows.Err()
}

// Archive copies every daily row into history stamped with archivedAt, then clears the daily table.
// The table is locked for the duration so no score lands between the copy and the clear.
func (r *LeaderboardRepository) Archive(ctx context.Context, archivedAt time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE daily_leaderboard IN EXCLUSIVE MODE`); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO daily_leaderboard_history
			(wallet_address, best_score, best_distance, games_played_today, team, play_date, archived_at)
		SELECT wallet_address, best_score, best_distance, games_played_today, team, play_date, $1
		FROM daily_leaderboard`, archivedAt)
	if err != nil {
		return 0, err
	}
	copied := tag.RowsAffected()

	if _, err := tx.Exec(ctx, `DELETE FROM daily_leaderboard`); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return copied, nil
}

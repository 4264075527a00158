package cache

import (
	"context"
	"fmt"
	"time"

	"race_arcade/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	globalLeaderboardKey = "leaderboard:global"
	scoreFingerprintKey  = "score:fp:"
)

// RecordBest stores the wallet's score in the all-time board, keeping the higher of old and new.
func (c *Client) RecordBest(ctx context.Context, wallet string, score int64) error {
	err := c.ZAddArgs(ctx, globalLeaderboardKey, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(score), Member: wallet}},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record global score: %w", err)
	}
	return nil
}

// TopGlobal returns the top N wallets of the all-time board
func (c *Client) TopGlobal(ctx context.Context, limit int64) ([]domain.GlobalEntry, error) {
	players, err := c.ZRevRangeWithScores(ctx, globalLeaderboardKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get global leaderboard: %w", err)
	}

	list := make([]domain.GlobalEntry, 0, len(players))
	for i, p := range players {
		wallet, _ := p.Member.(string)
		list = append(list, domain.GlobalEntry{
			Rank:          int64(i + 1),
			WalletAddress: wallet,
			BestScore:     int64(p.Score),
		})
	}
	return list, nil
}

// ClaimFingerprint returns false when the same fingerprint was claimed within ttl.
func (c *Client) ClaimFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	ok, err := c.SetNX(ctx, scoreFingerprintKey+fingerprint, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim score fingerprint: %w", err)
	}
	return ok, nil
}

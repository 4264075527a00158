package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
	"race_arcade/internal/repository"

	"github.com/benbjohnson/clock"
)

const (
	// maxScorePerSecond bounds plausible scores; double-or-nothing doubles it.
	maxScorePerSecond = 250
	maxTeamLength     = 32
	replayWindow      = 10 * time.Minute

	DefaultBoardLimit = 50
	MaxBoardLimit     = 100
)

// ScoreService accepts finished games and serves the daily and all-time boards.
type ScoreService struct {
	board    LeaderboardStore
	users    UserStore
	sessions SessionStore
	global   GlobalBoard
	audit    *AuditService
	clock    clock.Clock
}

// NewScoreService wires the score path. global may be nil when Redis is not configured.
func NewScoreService(board LeaderboardStore, users UserStore, sessions SessionStore, global GlobalBoard, audit *AuditService, clk clock.Clock) *ScoreService {
	if clk == nil {
		clk = clock.New()
	}
	return &ScoreService{
		board:    board,
		users:    users,
		sessions: sessions,
		global:   global,
		audit:    audit,
		clock:    clk,
	}
}

var scoreLabels = map[error]string{
	domain.ErrInvalidScore:   "invalid",
	domain.ErrInvalidAddress: "invalid",
	domain.ErrDuplicateScore: "duplicate",
}

// Submit records a finished game on today's board. The stored best only moves up.
func (s *ScoreService) Submit(ctx context.Context, sub domain.ScoreSubmission) (entry *domain.LeaderboardEntry, err error) {
	defer func() {
		ScoreSubmissions.WithLabelValues(resultLabel(err, scoreLabels)).Inc()
	}()

	wallet, err := domain.NormalizeWallet(sub.Wallet)
	if err != nil {
		return nil, err
	}
	sub.Wallet = wallet
	if err := validateScore(sub); err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx).With("wallet", wallet, "score", sub.Score)

	if sub.SessionID != "" {
		if err := s.sessions.Close(ctx, sub.SessionID, wallet); err != nil {
			if errors.Is(err, repository.ErrSessionNotOpen) {
				return nil, fmt.Errorf("%w: session %s", domain.ErrDuplicateScore, sub.SessionID)
			}
			return nil, fmt.Errorf("close session: %w", err)
		}
	} else if s.global != nil {
		fresh, err := s.global.ClaimFingerprint(ctx, fingerprint(sub), replayWindow)
		if err != nil {
			log.Warn("replay guard unavailable", "error", err)
		} else if !fresh {
			return nil, domain.ErrDuplicateScore
		}
	}

	now := s.clock.Now().UTC()
	playDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	entry, err = s.board.UpsertDaily(ctx, sub, playDate)
	if err != nil {
		return nil, fmt.Errorf("upsert daily leaderboard: %w", err)
	}
	if err := s.users.TouchLastPlayed(ctx, wallet, now); err != nil {
		log.Warn("failed to update last played", "error", err)
	}
	if s.global != nil {
		if err := s.global.RecordBest(ctx, wallet, sub.Score); err != nil {
			log.Warn("failed to update global leaderboard", "error", err)
		}
	}

	log.Info("score accepted", "best_score", entry.BestScore, "games_today", entry.GamesPlayedToday)
	s.audit.LogScore(ctx, wallet, sub.Score, sub.DurationSeconds)
	return entry, nil
}

// Daily returns today's top entries.
func (s *ScoreService) Daily(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	now := s.clock.Now().UTC()
	playDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.board.TopDaily(ctx, playDate, clampLimit(limit))
}

// Global returns the all-time board from Redis, falling back to Postgres.
func (s *ScoreService) Global(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	limit = clampLimit(limit)
	if s.global != nil {
		list, err := s.global.TopGlobal(ctx, int64(limit))
		if err == nil {
			return list, nil
		}
		logger.WithContext(ctx).Warn("global leaderboard cache unavailable", "error", err)
	}
	return s.board.TopAllTime(ctx, limit)
}

func validateScore(sub domain.ScoreSubmission) error {
	switch {
	case sub.Score < 0:
		return fmt.Errorf("%w: negative score", domain.ErrInvalidScore)
	case sub.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration", domain.ErrInvalidScore)
	case sub.Distance < 0 || math.IsNaN(sub.Distance) || math.IsInf(sub.Distance, 0):
		return fmt.Errorf("%w: bad distance", domain.ErrInvalidScore)
	case len(sub.Team) > maxTeamLength:
		return fmt.Errorf("%w: team name too long", domain.ErrInvalidScore)
	case sub.Score > int64(sub.DurationSeconds+1)*maxScorePerSecond*2:
		return fmt.Errorf("%w: %d points in %ds is not plausible", domain.ErrInvalidScore, sub.Score, sub.DurationSeconds)
	}
	return nil
}

func fingerprint(sub domain.ScoreSubmission) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%g|%s", sub.Wallet, sub.Score, sub.DurationSeconds, sub.Distance, sub.Team)))
	return hex.EncodeToString(sum[:])
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultBoardLimit
	}
	if limit > MaxBoardLimit {
		return MaxBoardLimit
	}
	return limit
}

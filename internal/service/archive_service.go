package service

import (
	"context"
	"fmt"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
)

// ArchiveService moves the daily leaderboard into history.
type ArchiveService struct {
	board LeaderboardStore
	audit *AuditService
	clock clock.Clock
}

func NewArchiveService(board LeaderboardStore, audit *AuditService, clk clock.Clock) *ArchiveService {
	if clk == nil {
		clk = clock.New()
	}
	return &ArchiveService{board: board, audit: audit, clock: clk}
}

// Archive copies every daily row into history and then clears the daily table.
// An empty board archives nothing and still succeeds.
func (s *ArchiveService) Archive(ctx context.Context) (*domain.ArchiveResult, error) {
	at := s.clock.Now().UTC()

	count, err := s.board.Archive(ctx, at)
	if err != nil {
		logger.WithContext(ctx).Error("leaderboard archive failed", "error", err)
		return nil, fmt.Errorf("archive leaderboard: %w", err)
	}

	LeaderboardArchived.Add(float64(count))
	logger.WithContext(ctx).Info("leaderboard archived", "archived_count", count, "archive_date", at)
	s.audit.LogArchive(ctx, count)

	return &domain.ArchiveResult{
		Success:       true,
		ArchivedCount: count,
		ArchiveDate:   at,
	}, nil
}

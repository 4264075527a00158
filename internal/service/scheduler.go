package service

import (
	"context"
	"fmt"
	"time"

	"race_arcade/internal/logger"

	"github.com/robfig/cron/v3"
)

const archiveJobTimeout = 2 * time.Minute

// Scheduler runs the in-process archive job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers the archive job. An empty schedule disables it.
func NewScheduler(archiveSpec string, archive *ArchiveService) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if archiveSpec != "" {
		_, err := c.AddFunc(archiveSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), archiveJobTimeout)
			defer cancel()
			if _, err := archive.Archive(ctx); err != nil {
				logger.Error("scheduled archive failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid ARCHIVE_CRON %q: %w", archiveSpec, err)
		}
		logger.Info("leaderboard archive scheduled", "cron", archiveSpec)
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

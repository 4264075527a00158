package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
)

// Poster sends a score to the backend.
type Poster interface {
	SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error
}

// SubmitError is returned once every attempt failed. The score is kept so the
// game-over screen can keep showing it and offer another try.
type SubmitError struct {
	Submission domain.ScoreSubmission
	Attempts   int
	Err        error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("score %d not saved after %d attempts: %v", e.Submission.Score, e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Submitter posts scores with linear backoff: attempt n waits n*Step before retrying.
type Submitter struct {
	poster     Poster
	maxRetries int
	step       time.Duration
	clock      clock.Clock
	log        *slog.Logger
}

func NewSubmitter(poster Poster, clk clock.Clock) *Submitter {
	if clk == nil {
		clk = clock.New()
	}
	return &Submitter{
		poster:     poster,
		maxRetries: 3,
		step:       2 * time.Second,
		clock:      clk,
		log:        logger.Component("score_submitter"),
	}
}

// Submit posts the score, retrying up to three times after the first failure.
// Rejections by the backend (invalid or duplicate score) are not retried.
func (s *Submitter) Submit(ctx context.Context, sub domain.ScoreSubmission) error {
	var lastErr error
	attempts := 0
	for retry := 0; retry <= s.maxRetries; retry++ {
		if retry > 0 {
			t := s.clock.Timer(time.Duration(retry) * s.step)
			select {
			case <-ctx.Done():
				t.Stop()
				return &SubmitError{Submission: sub, Attempts: attempts, Err: ctx.Err()}
			case <-t.C:
			}
		}

		attempts++
		err := s.poster.SubmitScore(ctx, sub)
		if err == nil {
			s.log.Info("score submitted", "wallet", sub.Wallet, "score", sub.Score, "attempts", attempts)
			return nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrInvalidScore) || errors.Is(err, domain.ErrDuplicateScore) {
			break
		}
		s.log.Warn("score submission failed", "attempt", attempts, "error", err)
	}

	return &SubmitError{Submission: sub, Attempts: attempts, Err: lastErr}
}

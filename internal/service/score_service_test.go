package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"race_arcade/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoreWallet = "0x4444444444444444444444444444444444444444"

func newScoreFixture(t *testing.T, board *fakeBoard) (*ScoreService, *memoryStore, *clock.Mock) {
	store := newMemoryStore()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC))

	var global GlobalBoard
	if board != nil {
		global = board
	}
	return NewScoreService(store, store, store, global, NewAuditService(store), mock), store, mock
}

func submission(score int64, distance float64) domain.ScoreSubmission {
	return domain.ScoreSubmission{
		Wallet:          scoreWallet,
		Score:           score,
		DurationSeconds: 90,
		Distance:        distance,
		Team:            "red",
	}
}

func TestSubmit_KeepsBestScoreAndCountsGames(t *testing.T) {
	board := newFakeBoard()
	svc, _, _ := newScoreFixture(t, board)
	ctx := context.Background()

	e, err := svc.Submit(ctx, submission(500, 1200))
	require.NoError(t, err)
	assert.Equal(t, int64(500), e.BestScore)
	assert.Equal(t, 1, e.GamesPlayedToday)

	e, err = svc.Submit(ctx, submission(300, 800))
	require.NoError(t, err)
	assert.Equal(t, int64(500), e.BestScore)
	assert.Equal(t, 1200.0, e.BestDistance)
	assert.Equal(t, 2, e.GamesPlayedToday)

	e, err = svc.Submit(ctx, submission(900, 2000))
	require.NoError(t, err)
	assert.Equal(t, int64(900), e.BestScore)
	assert.Equal(t, 2000.0, e.BestDistance)
	assert.Equal(t, 3, e.GamesPlayedToday)

	assert.Equal(t, int64(900), board.best[scoreWallet])
}

func TestSubmit_ReplayWithinWindowIsRejected(t *testing.T) {
	svc, _, _ := newScoreFixture(t, newFakeBoard())

	_, err := svc.Submit(context.Background(), submission(500, 1200))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submission(500, 1200))
	assert.ErrorIs(t, err, domain.ErrDuplicateScore)
}

func TestSubmit_ReplayGuardFailsOpen(t *testing.T) {
	board := newFakeBoard()
	board.err = errors.New("redis: connection refused")
	svc, _, _ := newScoreFixture(t, board)

	_, err := svc.Submit(context.Background(), submission(500, 1200))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), submission(500, 1200))
	require.NoError(t, err)
}

func TestSubmit_SessionAcceptsOneScore(t *testing.T) {
	svc, store, _ := newScoreFixture(t, nil)
	store.sessions["sess-1"] = &domain.GameSession{ID: "sess-1", Wallet: scoreWallet, CreditsUsed: 1}

	sub := submission(100, 10)
	sub.SessionID = "sess-1"
	_, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrDuplicateScore)
}

func TestSubmit_RejectsImplausibleInput(t *testing.T) {
	svc, _, _ := newScoreFixture(t, nil)

	tests := []struct {
		name string
		edit func(*domain.ScoreSubmission)
	}{
		{"negative score", func(s *domain.ScoreSubmission) { s.Score = -1 }},
		{"negative duration", func(s *domain.ScoreSubmission) { s.DurationSeconds = -5 }},
		{"negative distance", func(s *domain.ScoreSubmission) { s.Distance = -1 }},
		{"too fast", func(s *domain.ScoreSubmission) { s.DurationSeconds = 1; s.Score = 1_000_000 }},
		{"long team", func(s *domain.ScoreSubmission) { s.Team = "abcdefghijklmnopqrstuvwxyz0123456789" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission(100, 10)
			tt.edit(&sub)
			_, err := svc.Submit(context.Background(), sub)
			assert.ErrorIs(t, err, domain.ErrInvalidScore)
		})
	}
}

func TestGlobal_FallsBackWithoutRedis(t *testing.T) {
	board := newFakeBoard()
	svc, store, _ := newScoreFixture(t, board)

	_, err := svc.Submit(context.Background(), submission(700, 10))
	require.NoError(t, err)

	board.err = errors.New("redis down")
	store.history = append(store.history, domain.LeaderboardEntry{WalletAddress: "0x5555555555555555555555555555555555555555", BestScore: 900})

	list, err := svc.Global(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(900), list[0].BestScore)
	assert.Equal(t, int64(1), list[0].Rank)
}

func TestDaily_UsesTodayInUTC(t *testing.T) {
	svc, _, mock := newScoreFixture(t, nil)

	_, err := svc.Submit(context.Background(), submission(100, 10))
	require.NoError(t, err)

	list, err := svc.Daily(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	mock.Add(24 * time.Hour)
	list, err = svc.Daily(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

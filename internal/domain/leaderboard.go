package domain

import "time"

// LeaderboardEntry is a wallet's best result for one play date.
type LeaderboardEntry struct {
	WalletAddress    string    `db:"wallet_address" json:"wallet_address"`
	BestScore        int64     `db:"best_score" json:"best_score"`
	BestDistance     float64   `db:"best_distance" json:"best_distance"`
	GamesPlayedToday int       `db:"games_played_today" json:"games_played_today"`
	PlayDate         time.Time `db:"play_date" json:"play_date"`
}

// GlobalEntry is a row of the all-time board.
type GlobalEntry struct {
	Rank          int64  `json:"rank"`
	WalletAddress string `json:"wallet_address"`
	BestScore     int64  `json:"best_score"`
}

// ScoreSubmission is what the client posts at game end.
type ScoreSubmission struct {
	Wallet          string  `json:"wallet"`
	Score           int64   `json:"score"`
	DurationSeconds int     `json:"duration_seconds"`
	Distance        float64 `json:"distance"`
	Team            string  `json:"team"`
	SessionID       string  `json:"session_id,omitempty"`
}

// ArchiveResult is returned by the daily leaderboard archive job.
type ArchiveResult struct {
	Success       bool      `json:"success"`
	ArchivedCount int64     `json:"archived_count"`
	ArchiveDate   time.Time `json:"archive_date"`
}

package domain

import "time"

// GameSession is opened when credits are spent and closed by the score submission.
type GameSession struct {
	ID          string     `db:"id" json:"id"`
	Wallet      string     `db:"wallet_address" json:"wallet_address"`
	CreditsUsed int64      `db:"credits_used" json:"credits_used"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
}

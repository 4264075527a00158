package domain

import "time"

// AuditLog records a ledger-affecting action.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	Wallet    string                 `db:"wallet_address" json:"wallet_address"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

const (
	AuditCategoryPayment     = "payment"
	AuditCategoryBalance     = "balance"
	AuditCategoryGame        = "game"
	AuditCategoryLeaderboard = "leaderboard"
)

const (
	AuditActionPurchase        = "purchase"
	AuditActionBalanceDebit    = "balance_debit"
	AuditActionScoreSubmit     = "score_submit"
	AuditActionLeaderboardArch = "leaderboard_archive"
)

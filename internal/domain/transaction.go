package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the processing state of a purchase record.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction records a credit purchase. TransactionHash is the chain's own id and
// the idempotency key: at most one record per hash ever reaches success.
type Transaction struct {
	ID              int64             `db:"id" json:"id"`
	UserID          string            `db:"user_id" json:"user_id"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	CreditsAdded    int64             `db:"credits_added" json:"credits_added"`
	TransactionHash string            `db:"transaction_hash" json:"transaction_hash"`
	Status          TransactionStatus `db:"status" json:"status"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

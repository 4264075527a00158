package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesSummary aggregates credited purchases since a point in time.
type SalesSummary struct {
	Since     time.Time
	Purchases int64
	Credits   int64
	Revenue   decimal.Decimal
	Buyers    int64
}

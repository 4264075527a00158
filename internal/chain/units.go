package chain

import (
	"math/big"

	"race_arcade/internal/domain"

	"github.com/shopspring/decimal"
)

// FromWei converts a wei amount to native units.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -domain.NativeDecimals)
}

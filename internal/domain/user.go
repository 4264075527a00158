package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// User is a player keyed by wallet address. Credits gate game sessions.
type User struct {
	WalletAddress    string          `db:"wallet_address" json:"wallet_address"`
	Credits          int64           `db:"credits" json:"credits"`
	TotalGamesPlayed int64           `db:"total_games_played" json:"total_games_played"`
	TotalSpent       decimal.Decimal `db:"total_spent" json:"total_spent"`
	LastPlayed       *time.Time      `db:"last_played" json:"last_played,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// NormalizeWallet validates a hex wallet address and returns its lowercase form,
// which is the key used everywhere in storage.
func NormalizeWallet(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRequest is a plain native-currency transfer of an exact value.
type TransferRequest struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	ChainID *big.Int
}

// Wallet is the player's signing wallet. SendTransaction opens a prompt the player
// approves or rejects and returns once the wallet has broadcast the transfer.
type Wallet interface {
	Account(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	SendTransaction(ctx context.Context, req TransferRequest) (common.Hash, error)
	Reconnect(ctx context.Context) error
}

// Foregrounder is implemented by wallets that live in a separate app on phones.
type Foregrounder interface {
	IsMobile() bool
	OpenWalletApp(ctx context.Context) error
}

// BalanceReader is the part of ethclient used for the pre-flight funds check.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

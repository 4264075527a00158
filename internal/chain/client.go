package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const dialTimeout = 10 * time.Second

// Dial connects to the RPC endpoint and checks that it serves the expected chain.
func Dial(ctx context.Context, rawURL string, chainID *big.Int) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if chainID != nil && got.Cmp(chainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %s", got, chainID)
	}
	return client, nil
}

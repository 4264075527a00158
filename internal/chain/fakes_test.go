package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"race_arcade/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testChainID  = big.NewInt(8453)
	testReceiver = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog(map[int64]decimal.Decimal{
		1:  decimal.RequireFromString("0.001"),
		5:  decimal.RequireFromString("0.005"),
		10: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	return c
}

// codedError mimics an EIP-1193 provider error.
type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

type fakeWallet struct {
	mu sync.Mutex

	clock   clock.Clock
	account common.Address
	chainID *big.Int

	switchErr    error
	sendErrs     []error
	reconnectErr error
	mobile       bool

	switches   int
	reconnects int
	opened     int
	sent       []TransferRequest
	sentAt     []time.Time
}

func (w *fakeWallet) Account(ctx context.Context) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account, nil
}

func (w *fakeWallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.chainID), nil
}

func (w *fakeWallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches++
	if w.switchErr != nil {
		return w.switchErr
	}
	w.chainID = new(big.Int).Set(chainID)
	return nil
}

func (w *fakeWallet) SendTransaction(ctx context.Context, req TransferRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, req)
	if w.clock != nil {
		w.sentAt = append(w.sentAt, w.clock.Now())
	}
	if len(w.sendErrs) > 0 {
		err := w.sendErrs[0]
		w.sendErrs = w.sendErrs[1:]
		if err != nil {
			return common.Hash{}, err
		}
	}
	return common.HexToHash("0xfeed"), nil
}

func (w *fakeWallet) Reconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconnects++
	return w.reconnectErr
}

func (w *fakeWallet) IsMobile() bool { return w.mobile }

func (w *fakeWallet) OpenWalletApp(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened++
	return nil
}

func (w *fakeWallet) sendCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

type fakeBalances struct {
	balance  *big.Int
	gasPrice *big.Int
	err      error
}

func (b fakeBalances) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.balance, nil
}

func (b fakeBalances) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

var errTimeout = errors.New("request timed out")

// runWithClock runs fn and advances the mock clock in small steps until it returns.
func runWithClock[T any](t *testing.T, mock *clock.Mock, step time.Duration, fn func() T) T {
	t.Helper()
	done := make(chan T, 1)
	go func() { done <- fn() }()

	for i := 0; i < 5000; i++ {
		select {
		case v := <-done:
			return v
		default:
			mock.Add(step)
		}
	}
	t.Fatal("operation did not finish")
	var zero T
	return zero
}

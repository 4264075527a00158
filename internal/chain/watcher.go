package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNothingPending = errors.New("no pending payment to resume")

// ReceiptReader fetches a mined transaction's receipt. ethereum.NotFound means not mined yet.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// HeadSubscriber is implemented by websocket RPC clients.
type HeadSubscriber interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

type WatcherConfig struct {
	FastPathTimeout time.Duration
	PollInterval    time.Duration
	PollAttempts    int
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		FastPathTimeout: 30 * time.Second,
		PollInterval:    3 * time.Second,
		PollAttempts:    40,
	}
}

// Watcher resolves a submitted payment to Confirmed, Reverted or a confirmation timeout.
// It first waits on new block heads for a bounded time, then polls the receipt.
type Watcher struct {
	chain ReceiptReader
	store PendingStore
	cfg   WatcherConfig
	clock clock.Clock
	log   *slog.Logger
}

func NewWatcher(chain ReceiptReader, store PendingStore, cfg WatcherConfig, clk clock.Clock) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{
		chain: chain,
		store: store,
		cfg:   cfg,
		clock: clk,
		log:   logger.Component("watcher"),
	}
}

// Wait records the payment as pending and watches it to a terminal result.
// Only a revert removes it from the store: a confirmed payment stays until
// Forget is called once the backend has credited it, and a timed out one
// stays for a later Resume.
func (w *Watcher) Wait(ctx context.Context, p PendingPayment) (*types.Receipt, error) {
	w.save(p)

	receipt, done, err := w.fastPath(ctx, p.Hash)
	if err != nil && !done {
		return nil, err
	}
	if done {
		w.settle(p, err)
		return receipt, err
	}
	return w.poll(ctx, p)
}

// Resume restarts polling for the stored payment, skipping the fast path.
// A payment already seen confirmed is returned at once with a nil receipt.
func (w *Watcher) Resume(ctx context.Context) (*PendingPayment, *types.Receipt, error) {
	if w.store == nil {
		return nil, nil, ErrNothingPending
	}
	p, err := w.store.Load()
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrNothingPending
	}

	if p.Confirmed {
		w.log.Info("pending payment already confirmed", "tx_hash", p.Hash.Hex())
		return p, nil, nil
	}

	w.log.Info("resuming confirmation watch", "tx_hash", p.Hash.Hex())
	receipt, err := w.poll(ctx, *p)
	if err == nil {
		p.Confirmed = true
	}
	return p, receipt, err
}

// Forget drops the stored payment. Call it once the payment is credited or
// rejected for good.
func (w *Watcher) Forget() error {
	if w.store == nil {
		return nil
	}
	return w.store.Clear()
}

// fastPath checks the receipt on every new head until the timeout. A timeout or a
// client without subscriptions is not an error: done is false and polling takes over.
func (w *Watcher) fastPath(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	sub, ok := w.chain.(HeadSubscriber)
	if !ok || w.cfg.FastPathTimeout <= 0 {
		return nil, false, nil
	}

	heads := make(chan *types.Header, 16)
	subscription, err := sub.SubscribeNewHead(ctx, heads)
	if err != nil {
		w.log.Debug("head subscription unavailable, polling", "error", err)
		return nil, false, nil
	}
	defer subscription.Unsubscribe()

	timer := w.clock.Timer(w.cfg.FastPathTimeout)
	defer timer.Stop()

	if receipt, done, err := w.check(ctx, hash); done {
		return receipt, true, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-timer.C:
			w.log.Debug("fast path timed out, polling", "tx_hash", hash.Hex())
			return nil, false, nil
		case err := <-subscription.Err():
			w.log.Debug("head subscription dropped, polling", "error", err)
			return nil, false, nil
		case <-heads:
			if receipt, done, err := w.check(ctx, hash); done {
				return receipt, true, err
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context, p PendingPayment) (*types.Receipt, error) {
	hash := p.Hash
	for attempt := 1; attempt <= w.cfg.PollAttempts; attempt++ {
		if receipt, done, err := w.check(ctx, hash); done {
			w.settle(p, err)
			return receipt, err
		}
		if attempt == w.cfg.PollAttempts {
			break
		}

		t := w.clock.Timer(w.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	w.log.Warn("confirmation timed out", "tx_hash", hash.Hex(), "attempts", w.cfg.PollAttempts)
	return nil, &domain.ConfirmationTimeoutError{Hash: hash.Hex(), Attempts: w.cfg.PollAttempts}
}

// check reports done when the receipt exists. Lookup failures mean "keep waiting".
func (w *Watcher) check(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	receipt, err := w.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			w.log.Debug("receipt lookup failed", "tx_hash", hash.Hex(), "error", err)
		}
		return nil, false, nil
	}
	if receipt == nil {
		return nil, false, nil
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, true, fmt.Errorf("%w: %s in block %v", domain.ErrReverted, hash.Hex(), receipt.BlockNumber)
	}
	return receipt, true, nil
}

// settle records a confirmation and drops a reverted payment.
func (w *Watcher) settle(p PendingPayment, result error) {
	if result == nil {
		w.log.Info("payment confirmed", "tx_hash", p.Hash.Hex())
		p.Confirmed = true
		w.save(p)
		return
	}

	w.log.Warn("payment reverted", "tx_hash", p.Hash.Hex())
	if err := w.Forget(); err != nil {
		w.log.Warn("failed to clear pending payment", "tx_hash", p.Hash.Hex(), "error", err)
	}
}

func (w *Watcher) save(p PendingPayment) {
	if w.store == nil {
		return
	}
	if err := w.store.Save(p); err != nil {
		w.log.Warn("failed to persist pending payment", "tx_hash", p.Hash.Hex(), "error", err)
	}
}

package purchase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"race_arcade/internal/chain"
	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNotReady = errors.New("select a package before paying")

// Payer submits the package payment from the connected wallet.
type Payer interface {
	Pay(ctx context.Context, packageCredits int64) (common.Hash, error)
}

// Watcher resolves a submitted payment and keeps it stored until Forget.
type Watcher interface {
	Wait(ctx context.Context, p chain.PendingPayment) (*types.Receipt, error)
	Resume(ctx context.Context) (*chain.PendingPayment, *types.Receipt, error)
	Forget() error
}

// Backend is the verify and balance side of the API.
type Backend interface {
	VerifyPayment(ctx context.Context, txHash, wallet string, packageCredits int64) (*domain.VerifyPaymentResponse, error)
	Credits(ctx context.Context, wallet string) (*domain.CreditsResponse, error)
}

// Flow runs a purchase end to end: pay, wait for confirmation, verify, refresh the balance.
// Every step is reported as an Action so the state stays a pure function of history.
type Flow struct {
	payer   Payer
	watcher Watcher
	backend Backend
	clock   clock.Clock
	log     *slog.Logger

	mu        sync.Mutex
	state     State
	listeners []func(State)
}

func NewFlow(payer Payer, watcher Watcher, backend Backend, clk clock.Clock) *Flow {
	if clk == nil {
		clk = clock.New()
	}
	return &Flow{
		payer:   payer,
		watcher: watcher,
		backend: backend,
		clock:   clk,
		log:     logger.Component("purchase"),
		state:   State{Phase: PhaseIdle},
	}
}

// Subscribe registers fn to receive every new state.
func (f *Flow) Subscribe(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Dispatch applies a to the current state and notifies subscribers.
func (f *Flow) Dispatch(a Action) State {
	f.mu.Lock()
	f.state = Reduce(f.state, a)
	s := f.state
	listeners := append([]func(State){}, f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return s
}

// Connect loads the backend balance for wallet.
func (f *Flow) Connect(ctx context.Context, wallet string) error {
	res, err := f.backend.Credits(ctx, wallet)
	if err != nil {
		return err
	}
	f.Dispatch(Connected{Wallet: res.WalletAddress, Credits: res.Credits})
	return nil
}

// Select picks the package to buy.
func (f *Flow) Select(credits int64) State {
	return f.Dispatch(PackageSelected{Credits: credits})
}

// Buy pays for the selected package and sees it through to credited.
// A confirmation timeout leaves the flow in PhaseAwaitingRecheck with the hash kept.
func (f *Flow) Buy(ctx context.Context) error {
	s := f.Dispatch(PaymentStarted{})
	if s.Phase != PhaseSubmitting {
		return ErrNotReady
	}

	hash, err := f.payer.Pay(ctx, s.Package)
	if err != nil {
		f.Dispatch(PaymentFailed{Err: err})
		return err
	}
	f.Dispatch(PaymentSubmitted{Hash: hash.Hex()})

	pending := chain.PendingPayment{
		Hash:        hash,
		Wallet:      s.Wallet,
		Package:     s.Package,
		SubmittedAt: f.clock.Now().UTC(),
	}
	if _, err := f.watcher.Wait(ctx, pending); err != nil {
		f.Dispatch(PaymentFailed{Err: err})
		return err
	}
	return f.verify(ctx, pending)
}

// Recheck resumes the stored payment, e.g. after the app returns to the foreground.
// A payment already confirmed goes straight to verification.
func (f *Flow) Recheck(ctx context.Context) error {
	s := f.Dispatch(RecheckStarted{Hash: f.State().TxHash})

	pending, _, err := f.watcher.Resume(ctx)
	if err != nil {
		if errors.Is(err, chain.ErrNothingPending) {
			if p, ok := pendingFromState(s); ok {
				return f.verify(ctx, p)
			}
			f.Dispatch(Reset{})
			return err
		}
		f.Dispatch(PaymentFailed{Err: err})
		return err
	}
	return f.verify(ctx, *pending)
}

// pendingFromState rebuilds the claim from the flow's own copy of the hash
// when the store has lost it.
func pendingFromState(s State) (chain.PendingPayment, bool) {
	if s.Phase != PhaseConfirming || s.TxHash == "" || s.Package == 0 || s.Wallet == "" {
		return chain.PendingPayment{}, false
	}
	return chain.PendingPayment{Hash: common.HexToHash(s.TxHash), Wallet: s.Wallet, Package: s.Package}, true
}

// verify claims the confirmed payment. The stored hash is dropped only once the
// backend has answered for good; a failed call keeps it for Recheck.
func (f *Flow) verify(ctx context.Context, p chain.PendingPayment) error {
	f.Dispatch(PaymentConfirmed{Hash: p.Hash.Hex()})
	log := f.log.With("tx_hash", p.Hash.Hex(), "package", p.Package)

	res, err := f.backend.VerifyPayment(ctx, p.Hash.Hex(), p.Wallet, p.Package)
	switch {
	case err == nil:
		f.forget(log)
		f.Dispatch(PaymentVerified{Credits: res.Credits})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		// An earlier call already credited this hash.
		log.Info("payment already credited")
		f.forget(log)
		f.Dispatch(PaymentVerified{Credits: f.State().Credits})
	case finalRejection(err):
		log.Warn("payment rejected", "error", err)
		f.forget(log)
		f.Dispatch(PaymentFailed{Err: err})
		return err
	default:
		log.Warn("verification failed, keeping payment for recheck", "error", err)
		f.Dispatch(VerificationDeferred{Err: err})
		return err
	}

	f.refresh(ctx, p.Wallet)
	return nil
}

// finalRejection reports whether the backend judged the claim itself invalid.
// Not found and not confirmed can be node lag behind a confirmed receipt.
func finalRejection(err error) bool {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotConfirmed) {
		return false
	}
	return domain.IsValidationError(err)
}

func (f *Flow) forget(log *slog.Logger) {
	if err := f.watcher.Forget(); err != nil {
		log.Warn("failed to clear pending payment", "error", err)
	}
}

// refresh replaces the cached balance with the backend's.
func (f *Flow) refresh(ctx context.Context, wallet string) {
	res, err := f.backend.Credits(ctx, wallet)
	if err != nil {
		f.log.Warn("balance refresh failed", "error", err)
		return
	}
	f.Dispatch(CreditsRefreshed{Credits: res.Credits})
}

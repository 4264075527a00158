package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// PayerConfig bounds the payment initiation loop.
type PayerConfig struct {
	ChainID  *big.Int
	Receiver common.Address
	Catalog  *domain.Catalog

	// GasLimit and GasBufferPercent size the fee reserve checked before prompting.
	GasLimit         uint64
	GasBufferPercent int64

	MaxAttempts int
	BaseBackoff time.Duration

	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// DefaultPayerConfig returns the production retry budget.
func DefaultPayerConfig(chainID *big.Int, receiver common.Address, catalog *domain.Catalog) PayerConfig {
	return PayerConfig{
		ChainID:           chainID,
		Receiver:          receiver,
		Catalog:           catalog,
		GasLimit:          params.TxGas,
		GasBufferPercent:  50,
		MaxAttempts:       3,
		BaseBackoff:       time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    500 * time.Millisecond,
	}
}

// Payer submits the transfer for a package from the connected wallet.
type Payer struct {
	wallet   Wallet
	balances BalanceReader
	cfg      PayerConfig
	clock    clock.Clock
	log      *slog.Logger
}

func NewPayer(wallet Wallet, balances BalanceReader, cfg PayerConfig, clk clock.Clock) *Payer {
	if clk == nil {
		clk = clock.New()
	}
	return &Payer{
		wallet:   wallet,
		balances: balances,
		cfg:      cfg,
		clock:    clk,
		log:      logger.Component("payer"),
	}
}

// Pay sends the exact package price to the receiver and returns the transaction hash.
// User rejection and insufficient funds are returned at once; transient failures are
// retried with exponential backoff.
func (p *Payer) Pay(ctx context.Context, packageCredits int64) (common.Hash, error) {
	pkg, err := p.cfg.Catalog.Lookup(packageCredits)
	if err != nil {
		return common.Hash{}, err
	}

	account, err := p.wallet.Account(ctx)
	if err != nil || account == (common.Address{}) {
		return common.Hash{}, domain.ErrNotConnected
	}

	if err := p.ensureNetwork(ctx); err != nil {
		return common.Hash{}, err
	}

	req := TransferRequest{
		From:    account,
		To:      p.cfg.Receiver,
		Value:   pkg.PriceWei(),
		ChainID: p.cfg.ChainID,
	}
	if err := p.checkFunds(ctx, account, req.Value); err != nil {
		return common.Hash{}, err
	}

	log := p.log.With("wallet", account.Hex(), "package", pkg.Credits)

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		hash, err := p.submit(ctx, req)
		if err == nil {
			log.Info("payment submitted", "tx_hash", hash.Hex(), "attempt", attempt)
			return hash, nil
		}

		err = ClassifyError(err)
		switch {
		case errors.Is(err, domain.ErrUserRejected), errors.Is(err, domain.ErrInsufficientFunds):
			log.Info("payment not submitted", "error", err)
			return common.Hash{}, err
		case errors.Is(err, domain.ErrWalletNotConnected):
			if rerr := p.reconnect(ctx); rerr != nil {
				return common.Hash{}, rerr
			}
		case errors.Is(err, domain.ErrTransientConnection):
		default:
			return common.Hash{}, err
		}

		lastErr = err
		log.Warn("payment attempt failed", "attempt", attempt, "error", err)
		if attempt < p.cfg.MaxAttempts {
			if err := p.sleep(ctx, p.cfg.BaseBackoff<<(attempt-1)); err != nil {
				return common.Hash{}, err
			}
		}
	}
	return common.Hash{}, lastErr
}

// ensureNetwork prompts a chain switch when the wallet is on another network.
func (p *Payer) ensureNetwork(ctx context.Context) error {
	current, err := p.wallet.ChainID(ctx)
	if err != nil {
		return ClassifyError(err)
	}
	if current.Cmp(p.cfg.ChainID) == 0 {
		return nil
	}

	p.log.Info("requesting network switch", "from", current, "to", p.cfg.ChainID)
	if err := p.wallet.SwitchChain(ctx, p.cfg.ChainID); err != nil {
		return fmt.Errorf("%w: switch to chain %s: %v", domain.ErrWrongNetwork, p.cfg.ChainID, err)
	}

	current, err = p.wallet.ChainID(ctx)
	if err != nil || current.Cmp(p.cfg.ChainID) != 0 {
		return fmt.Errorf("%w: wallet still on chain %v", domain.ErrWrongNetwork, current)
	}
	return nil
}

// checkFunds requires balance >= value + gasLimit * gasPrice * (1 + buffer).
func (p *Payer) checkFunds(ctx context.Context, account common.Address, value *big.Int) error {
	balance, err := p.balances.BalanceAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("%w: read balance: %v", domain.ErrTransientConnection, err)
	}
	gasPrice, err := p.balances.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("%w: read gas price: %v", domain.ErrTransientConnection, err)
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(p.cfg.GasLimit))
	fee.Mul(fee, big.NewInt(100+p.cfg.GasBufferPercent))
	fee.Div(fee, big.NewInt(100))

	required := new(big.Int).Add(value, fee)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s, need %s", domain.ErrInsufficientFunds, FromWei(balance), FromWei(required))
	}
	return nil
}

// submit sends the request. On phones the wallet app is brought forward while
// the request is outstanding, since prompts in a background tab are easy to miss.
func (p *Payer) submit(ctx context.Context, req TransferRequest) (common.Hash, error) {
	fg, ok := p.wallet.(Foregrounder)
	if !ok || !fg.IsMobile() {
		return p.wallet.SendTransaction(ctx, req)
	}

	type result struct {
		hash common.Hash
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hash, err := p.wallet.SendTransaction(ctx, req)
		done <- result{hash, err}
	}()

	if err := fg.OpenWalletApp(ctx); err != nil {
		p.log.Warn("could not open wallet app", "error", err)
	}

	r := <-done
	return r.hash, r.err
}

// reconnect retries the wallet connection with an increasing delay.
func (p *Payer) reconnect(ctx context.Context) error {
	for i := 1; i <= p.cfg.ReconnectAttempts; i++ {
		if err := p.wallet.Reconnect(ctx); err == nil {
			if account, err := p.wallet.Account(ctx); err == nil && account != (common.Address{}) {
				p.log.Info("wallet reconnected", "attempt", i)
				return nil
			}
		}
		if err := p.sleep(ctx, time.Duration(i)*p.cfg.ReconnectDelay); err != nil {
			return err
		}
	}
	return domain.ErrWalletNotConnected
}

func (p *Payer) sleep(ctx context.Context, d time.Duration) error {
	t := p.clock.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

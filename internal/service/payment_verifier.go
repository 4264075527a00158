package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"race_arcade/internal/chain"
	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
	"race_arcade/internal/repository"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// VerifyRequest is a client's claim that it paid for a package.
type VerifyRequest struct {
	TxHash         string
	UserAddress    string
	PackageCredits int64
}

// VerifyResult is the balance after crediting.
type VerifyResult struct {
	Credits         int64  `json:"credits"`
	TransactionHash string `json:"transactionHash"`
}

type VerifierConfig struct {
	ChainID    *big.Int
	Receiver   common.Address
	Catalog    *domain.Catalog
	Attempts   int
	RetryDelay time.Duration
}

// PaymentVerifier turns an on-chain payment into credits, at most once per transaction hash.
type PaymentVerifier struct {
	chain     ChainReader
	users     UserStore
	purchases PurchaseStore
	audit     *AuditService
	feed      BalancePublisher
	notify    PurchaseNotifier
	cfg       VerifierConfig
	signer    types.Signer
	clock     clock.Clock
}

func NewPaymentVerifier(chainReader ChainReader, users UserStore, purchases PurchaseStore, audit *AuditService, feed BalancePublisher, cfg VerifierConfig, clk clock.Clock) *PaymentVerifier {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &PaymentVerifier{
		chain:     chainReader,
		users:     users,
		purchases: purchases,
		audit:     audit,
		feed:      feed,
		cfg:       cfg,
		signer:    types.LatestSignerForChainID(cfg.ChainID),
		clock:     clk,
	}
}

// SetNotifier registers an operator hook called after each credited purchase.
func (v *PaymentVerifier) SetNotifier(n PurchaseNotifier) {
	v.notify = n
}

var verifyLabels = map[error]string{
	domain.ErrAlreadyProcessed: "already_processed",
	domain.ErrNotFound:         "not_found",
	domain.ErrNotConfirmed:     "not_confirmed",
	domain.ErrReverted:         "reverted",
	domain.ErrAmountMismatch:   "amount_mismatch",
	domain.ErrWrongReceiver:    "wrong_receiver",
	domain.ErrSenderMismatch:   "sender_mismatch",
	domain.ErrUnknownPackage:   "unknown_package",
	domain.ErrInvalidAddress:   "invalid_request",
	domain.ErrInvalidHash:      "invalid_request",
}

// VerifyPayment checks the claimed transaction on chain and credits the package.
// Repeating the call with the same hash returns ErrAlreadyProcessed.
func (v *PaymentVerifier) VerifyPayment(ctx context.Context, req VerifyRequest) (res *VerifyResult, err error) {
	defer func() {
		PaymentVerifications.WithLabelValues(resultLabel(err, verifyLabels)).Inc()
	}()

	hash, err := parseTxHash(req.TxHash)
	if err != nil {
		return nil, err
	}
	wallet, err := domain.NormalizeWallet(req.UserAddress)
	if err != nil {
		return nil, err
	}
	pkg, err := v.cfg.Catalog.Lookup(req.PackageCredits)
	if err != nil {
		return nil, err
	}

	hashHex := hash.Hex()
	log := logger.WithContext(ctx).With("tx_hash", hashHex, "wallet", wallet, "package", pkg.Credits)

	exists, err := v.purchases.HashExists(ctx, hashHex)
	if err != nil {
		return nil, fmt.Errorf("verify payment: lookup hash: %w", err)
	}
	if exists {
		log.Info("payment already processed")
		return nil, domain.ErrAlreadyProcessed
	}

	tx, receipt, err := v.fetch(ctx, hash)
	if err == nil {
		err = v.validate(tx, receipt, pkg, wallet)
	}
	if err != nil {
		log.Warn("payment rejected", "error", err)
		return nil, err
	}

	if _, err := v.users.EnsureUser(ctx, wallet); err != nil {
		return nil, fmt.Errorf("verify payment: load user: %w", err)
	}

	record := &domain.Transaction{
		UserID:          wallet,
		Amount:          pkg.Price,
		CreditsAdded:    pkg.Credits,
		TransactionHash: hashHex,
	}
	user, err := v.purchases.RecordPurchase(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info("payment credited by a concurrent request")
			return nil, domain.ErrAlreadyProcessed
		}
		log.Error("failed to credit payment", "error", err)
		return nil, fmt.Errorf("verify payment: record purchase: %w", err)
	}

	CreditsPurchased.Add(float64(pkg.Credits))
	log.Info("payment credited", "credits", user.Credits, "block", receipt.BlockNumber)
	v.audit.LogPurchase(ctx, wallet, hashHex, pkg.Credits, pkg.Price.String())
	if v.feed != nil {
		v.feed.PublishBalance(wallet, user)
	}
	if v.notify != nil {
		v.notify.NotifyPurchase(wallet, pkg, hashHex)
	}

	return &VerifyResult{Credits: user.Credits, TransactionHash: hashHex}, nil
}

// fetch reads the transaction and its receipt, retrying while the node has not seen
// or not mined it yet. A persistent RPC failure is returned as-is.
func (v *PaymentVerifier) fetch(ctx context.Context, hash common.Hash) (*types.Transaction, *types.Receipt, error) {
	var (
		tx      *types.Transaction
		lastErr error
	)
	for attempt := 1; attempt <= v.cfg.Attempts; attempt++ {
		var pending bool
		var err error
		tx, pending, err = v.chain.TransactionByHash(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			tx, lastErr = nil, domain.ErrNotFound
		case err != nil:
			tx, lastErr = nil, fmt.Errorf("verify payment: query chain: %w", err)
		case pending:
			lastErr = domain.ErrNotConfirmed
		default:
			receipt, rerr := v.chain.TransactionReceipt(ctx, hash)
			if rerr == nil && receipt != nil {
				return tx, receipt, nil
			}
			lastErr = domain.ErrNotConfirmed
		}

		if attempt == v.cfg.Attempts {
			break
		}
		t := v.clock.Timer(v.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, nil, ctx.Err()
		case <-t.C:
		}
	}

	if errors.Is(lastErr, domain.ErrNotFound) || errors.Is(lastErr, domain.ErrNotConfirmed) {
		return tx, nil, nil
	}
	return nil, nil, lastErr
}

// validate applies the checks in a fixed order: found, mined, succeeded, amount, receiver, sender.
func (v *PaymentVerifier) validate(tx *types.Transaction, receipt *types.Receipt, pkg domain.Package, wallet string) error {
	if tx == nil {
		return domain.ErrNotFound
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return domain.ErrNotConfirmed
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.ErrReverted
	}

	if tx.Value().Cmp(pkg.PriceWei()) != 0 {
		return fmt.Errorf("%w: paid %s, package of %d costs %s",
			domain.ErrAmountMismatch, chain.FromWei(tx.Value()), pkg.Credits, pkg.Price)
	}

	if tx.To() == nil || *tx.To() != v.cfg.Receiver {
		return domain.ErrWrongReceiver
	}

	sender, err := types.Sender(v.signer, tx)
	if err != nil {
		return fmt.Errorf("%w: recover sender: %v", domain.ErrSenderMismatch, err)
	}
	if !strings.EqualFold(sender.Hex(), wallet) {
		return domain.ErrSenderMismatch
	}
	return nil
}

func parseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, domain.ErrInvalidHash
	}
	return common.BytesToHash(b), nil
}

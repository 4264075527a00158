package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"race_arcade/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFixture struct {
	verifier *PaymentVerifier
	store    *memoryStore
	chain    *fakeChain
	feed     *recordingFeed
	clock    *clock.Mock
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	store := newMemoryStore()
	chainFake := newFakeChain()
	feed := &recordingFeed{}
	mock := clock.NewMock()
	v := NewPaymentVerifier(chainFake, store, store, NewAuditService(store), feed, VerifierConfig{
		ChainID:    testChainID,
		Receiver:   testReceiver,
		Catalog:    testCatalog(t),
		Attempts:   5,
		RetryDelay: 3 * time.Second,
	}, mock)
	return &verifierFixture{verifier: v, store: store, chain: chainFake, feed: feed, clock: mock}
}

type verifyOutcome struct {
	res *VerifyResult
	err error
}

func (f *verifierFixture) verify(t *testing.T, hash common.Hash, user string, pkg int64) verifyOutcome {
	return runWithClock(t, f.clock, time.Second, func() verifyOutcome {
		res, err := f.verifier.VerifyPayment(context.Background(), VerifyRequest{
			TxHash:         hash.Hex(),
			UserAddress:    user,
			PackageCredits: pkg,
		})
		return verifyOutcome{res, err}
	})
}

func TestVerifyPayment_CreditsOnceAndRejectsReplay(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	wallet, _ := domain.NormalizeWallet(addr)

	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.005"), types.ReceiptStatusSuccessful)

	first := f.verify(t, hash, addr, 5)
	require.NoError(t, first.err)
	assert.Equal(t, int64(5), first.res.Credits)
	assert.Equal(t, hash.Hex(), first.res.TransactionHash)
	assert.Equal(t, int64(5), f.feed.pushes[wallet])

	second := f.verify(t, hash, addr, 5)
	assert.ErrorIs(t, second.err, domain.ErrAlreadyProcessed)
	assert.Equal(t, int64(5), f.store.credits(wallet))
	assert.Equal(t, 1, f.store.txCount())

	u, err := f.store.GetByWallet(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, "0.005", u.TotalSpent.String())
}

func TestVerifyPayment_ConcurrentSameHashCreditsOnce(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	wallet, _ := domain.NormalizeWallet(addr)
	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.001"), types.ReceiptStatusSuccessful)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.verifier.VerifyPayment(context.Background(), VerifyRequest{TxHash: hash.Hex(), UserAddress: addr, PackageCredits: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyProcessed):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, already)
	assert.Equal(t, int64(1), f.store.credits(wallet))
}

func TestVerifyPayment_ConcurrentDistinctHashesNoLostUpdate(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	wallet, _ := domain.NormalizeWallet(addr)

	h1 := f.chain.mine(t, key, testReceiver, wei(t, "0.001"), types.ReceiptStatusSuccessful)
	h2 := f.chain.mine(t, key, testReceiver, wei(t, "0.001"), types.ReceiptStatusSuccessful)

	var wg sync.WaitGroup
	for _, h := range []common.Hash{h1, h2} {
		wg.Add(1)
		go func(h common.Hash) {
			defer wg.Done()
			_, err := f.verifier.VerifyPayment(context.Background(), VerifyRequest{TxHash: h.Hex(), UserAddress: addr, PackageCredits: 1})
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	assert.Equal(t, int64(2), f.store.credits(wallet))
}

func TestVerifyPayment_ValidationOrder(t *testing.T) {
	otherReceiver := common.HexToAddress("0x2222222222222222222222222222222222222222")

	tests := []struct {
		name    string
		to      common.Address
		amount  string
		pkg     int64
		status  uint64
		sign    string // "user" or "other"
		wantErr error
	}{
		{"wrong receiver with correct amount and sender", otherReceiver, "0.005", 5, types.ReceiptStatusSuccessful, "user", domain.ErrWrongReceiver},
		{"amount checked before receiver", otherReceiver, "0.004", 5, types.ReceiptStatusSuccessful, "user", domain.ErrAmountMismatch},
		{"overpayment is a mismatch", testReceiver, "0.02", 10, types.ReceiptStatusSuccessful, "user", domain.ErrAmountMismatch},
		{"price of another package", testReceiver, "0.001", 5, types.ReceiptStatusSuccessful, "user", domain.ErrAmountMismatch},
		{"sender differs", testReceiver, "0.001", 1, types.ReceiptStatusSuccessful, "other", domain.ErrSenderMismatch},
		{"reverted transfer", testReceiver, "0.001", 1, types.ReceiptStatusFailed, "user", domain.ErrReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVerifierFixture(t)
			userKey, addr := newKey(t)
			otherKey, _ := newKey(t)
			wallet, _ := domain.NormalizeWallet(addr)

			signer := userKey
			if tt.sign == "other" {
				signer = otherKey
			}
			hash := f.chain.mine(t, signer, tt.to, wei(t, tt.amount), tt.status)

			out := f.verify(t, hash, addr, tt.pkg)
			assert.ErrorIs(t, out.err, tt.wantErr)
			assert.True(t, domain.IsValidationError(out.err))
			assert.Zero(t, f.store.credits(wallet))
			assert.Zero(t, f.store.txCount())
		})
	}
}

func TestVerifyPayment_AddressesCompareCaseInsensitively(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	upper := "0x" + strings.ToUpper(strings.TrimPrefix(addr, "0x"))

	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.01"), types.ReceiptStatusSuccessful)

	out := f.verify(t, hash, upper, 10)
	require.NoError(t, out.err)
	assert.Equal(t, int64(10), out.res.Credits)
}

func TestVerifyPayment_RetriesUntilVisible(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.001"), types.ReceiptStatusSuccessful)
	f.chain.hiddenFor[hash] = 2

	out := f.verify(t, hash, addr, 1)
	require.NoError(t, out.err)
	assert.Equal(t, 3, f.chain.lookupCount(hash))
}

func TestVerifyPayment_NotFoundAfterFiveAttempts(t *testing.T) {
	f := newVerifierFixture(t)
	_, addr := newKey(t)
	hash := common.HexToHash("0x" + strings.Repeat("ab", 32))

	out := f.verify(t, hash, addr, 1)
	assert.ErrorIs(t, out.err, domain.ErrNotFound)
	assert.Equal(t, 5, f.chain.lookupCount(hash))
	assert.Zero(t, f.store.txCount())
}

func TestVerifyPayment_PendingIsNotConfirmed(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.001"), types.ReceiptStatusSuccessful)
	f.chain.pending[hash] = true

	out := f.verify(t, hash, addr, 1)
	assert.ErrorIs(t, out.err, domain.ErrNotConfirmed)
	assert.Equal(t, 5, f.chain.lookupCount(hash))
}

func TestVerifyPayment_FailedCreditLeavesNoRecord(t *testing.T) {
	f := newVerifierFixture(t)
	key, addr := newKey(t)
	wallet, _ := domain.NormalizeWallet(addr)
	hash := f.chain.mine(t, key, testReceiver, wei(t, "0.005"), types.ReceiptStatusSuccessful)

	f.store.failCredit = errors.New("connection reset by peer")
	out := f.verify(t, hash, addr, 5)
	require.Error(t, out.err)
	assert.False(t, domain.IsValidationError(out.err))
	assert.Zero(t, f.store.credits(wallet))
	assert.Zero(t, f.store.txCount(), "no pending or success record may survive")

	// The hash stays usable for a legitimate retry.
	f.store.failCredit = nil
	out = f.verify(t, hash, addr, 5)
	require.NoError(t, out.err)
	assert.Equal(t, int64(5), out.res.Credits)
}

func TestVerifyPayment_RejectsMalformedInput(t *testing.T) {
	f := newVerifierFixture(t)
	_, addr := newKey(t)
	hash := common.HexToHash("0x01")

	_, err := f.verifier.VerifyPayment(context.Background(), VerifyRequest{TxHash: "0x1234", UserAddress: addr, PackageCredits: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidHash)

	_, err = f.verifier.VerifyPayment(context.Background(), VerifyRequest{TxHash: hash.Hex(), UserAddress: "not-an-address", PackageCredits: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = f.verifier.VerifyPayment(context.Background(), VerifyRequest{TxHash: hash.Hex(), UserAddress: addr, PackageCredits: 3})
	assert.ErrorIs(t, err, domain.ErrUnknownPackage)

	assert.Zero(t, f.chain.lookupCount(hash))
}

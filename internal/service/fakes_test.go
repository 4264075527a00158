package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/repository"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testChainID  = big.NewInt(8453)
	testReceiver = common.HexToAddress("0x1111111111111111111111111111111111111111")
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

// memoryStore is an in-process stand-in for the pgx repositories with the same
// atomicity: a failed purchase leaves neither a record nor a balance change.
type memoryStore struct {
	mu sync.Mutex

	users    map[string]*domain.User
	txs      map[string]*domain.Transaction
	nextID   int64
	daily    map[string]*domain.LeaderboardEntry
	history  []domain.LeaderboardEntry
	sessions map[string]*domain.GameSession
	audits   []domain.AuditLog

	failCredit  error
	failArchive error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[string]*domain.User{},
		txs:      map[string]*domain.Transaction{},
		daily:    map[string]*domain.LeaderboardEntry{},
		sessions: map[string]*domain.GameSession{},
	}
}

func (m *memoryStore) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[wallet]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) EnsureUser(ctx context.Context, wallet string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[wallet]
	if !ok {
		u = &domain.User{WalletAddress: wallet, TotalSpent: decimal.Zero, CreatedAt: time.Now()}
		m.users[wallet] = u
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) Debit(ctx context.Context, wallet string, amount int64, session *domain.GameSession) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[wallet]
	if !ok || u.Credits < amount {
		return nil, domain.ErrInsufficientCredits
	}
	u.Credits -= amount
	u.TotalGamesPlayed++
	if session != nil {
		session.Wallet = wallet
		session.CreditsUsed = amount
		m.sessions[session.ID] = session
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) TouchLastPlayed(ctx context.Context, wallet string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[wallet]; ok {
		u.LastPlayed = &at
	}
	return nil
}

func (m *memoryStore) HashExists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.txs[hash]
	return ok, nil
}

func (m *memoryStore) RecordPurchase(ctx context.Context, t *domain.Transaction) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[t.TransactionHash]; ok {
		return nil, repository.ErrDuplicate
	}

	m.nextID++
	t.ID = m.nextID
	t.Status = domain.TransactionStatusPending
	m.txs[t.TransactionHash] = t

	u, ok := m.users[t.UserID]
	if !ok || m.failCredit != nil {
		delete(m.txs, t.TransactionHash)
		if m.failCredit != nil {
			return nil, m.failCredit
		}
		return nil, errors.New("no such user")
	}

	u.Credits += t.CreditsAdded
	u.TotalSpent = u.TotalSpent.Add(t.Amount)
	t.Status = domain.TransactionStatusSuccess
	cp := *u
	return &cp, nil
}

func (m *memoryStore) UpsertDaily(ctx context.Context, sub domain.ScoreSubmission, playDate time.Time) (*domain.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sub.Wallet + "|" + playDate.Format("2006-01-02")
	e, ok := m.daily[key]
	if !ok {
		e = &domain.LeaderboardEntry{WalletAddress: sub.Wallet, PlayDate: playDate, BestScore: sub.Score, BestDistance: sub.Distance}
		m.daily[key] = e
	} else if sub.Score > e.BestScore {
		e.BestScore = sub.Score
		e.BestDistance = sub.Distance
	}
	e.GamesPlayedToday++
	cp := *e
	return &cp, nil
}

func (m *memoryStore) TopDaily(ctx context.Context, playDate time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []domain.LeaderboardEntry
	for _, e := range m.daily {
		if e.PlayDate.Equal(playDate) {
			list = append(list, *e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].BestScore > list[j].BestScore })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) TopAllTime(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := map[string]int64{}
	for _, e := range m.daily {
		if e.BestScore > best[e.WalletAddress] {
			best[e.WalletAddress] = e.BestScore
		}
	}
	for _, e := range m.history {
		if e.BestScore > best[e.WalletAddress] {
			best[e.WalletAddress] = e.BestScore
		}
	}
	var list []domain.GlobalEntry
	for w, s := range best {
		list = append(list, domain.GlobalEntry{WalletAddress: w, BestScore: s})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].BestScore > list[j].BestScore })
	for i := range list {
		list[i].Rank = int64(i + 1)
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) Archive(ctx context.Context, archivedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failArchive != nil {
		return 0, m.failArchive
	}
	var n int64
	for key, e := range m.daily {
		m.history = append(m.history, *e)
		delete(m.daily, key)
		n++
	}
	return n, nil
}

func (m *memoryStore) Close(ctx context.Context, id, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Wallet != wallet || s.SubmittedAt != nil {
		return repository.ErrSessionNotOpen
	}
	now := time.Now()
	s.SubmittedAt = &now
	return nil
}

func (m *memoryStore) Create(ctx context.Context, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *log)
	return nil
}

func (m *memoryStore) credits(wallet string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[wallet]; ok {
		return u.Credits
	}
	return 0
}

func (m *memoryStore) txCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// fakeChain serves signed transactions and receipts keyed by hash.
type fakeChain struct {
	mu       sync.Mutex
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	pending  map[common.Hash]bool
	// hiddenFor makes a hash invisible for its first n lookups.
	hiddenFor map[common.Hash]int
	lookups   map[common.Hash]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		txs:       map[common.Hash]*types.Transaction{},
		receipts:  map[common.Hash]*types.Receipt{},
		pending:   map[common.Hash]bool{},
		hiddenFor: map[common.Hash]int{},
		lookups:   map[common.Hash]int{},
	}
}

func (c *fakeChain) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups[hash]++
	if c.lookups[hash] <= c.hiddenFor[hash] {
		return nil, false, ethereum.NotFound
	}
	tx, ok := c.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, c.pending[hash], nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *fakeChain) lookupCount(hash common.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups[hash]
}

// mine adds a signed transfer to the chain with the given receipt status.
func (c *fakeChain) mine(t *testing.T, key *ecdsa.PrivateKey, to common.Address, wei *big.Int, status uint64) common.Hash {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := uint64(len(c.txs))
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     wei,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(testChainID), key)
	require.NoError(t, err)

	hash := signed.Hash()
	c.txs[hash] = signed
	c.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(int64(1000 + nonce)),
	}
	return hash
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func wei(t *testing.T, amount string) *big.Int {
	t.Helper()
	return decimal.RequireFromString(amount).Shift(domain.NativeDecimals).BigInt()
}

// recordingFeed captures balance pushes.
type recordingFeed struct {
	mu     sync.Mutex
	pushes map[string]int64
}

func (f *recordingFeed) PublishBalance(wallet string, user *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushes == nil {
		f.pushes = map[string]int64{}
	}
	f.pushes[wallet] = user.Credits
}

// fakeBoard stands in for the Redis global board.
type fakeBoard struct {
	mu      sync.Mutex
	best    map[string]int64
	claimed map[string]bool
	err     error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{best: map[string]int64{}, claimed: map[string]bool{}}
}

func (b *fakeBoard) RecordBest(ctx context.Context, wallet string, score int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if score > b.best[wallet] {
		b.best[wallet] = score
	}
	return nil
}

func (b *fakeBoard) TopGlobal(ctx context.Context, limit int64) ([]domain.GlobalEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var list []domain.GlobalEntry
	for w, s := range b.best {
		list = append(list, domain.GlobalEntry{WalletAddress: w, BestScore: s})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].BestScore > list[j].BestScore })
	for i := range list {
		list[i].Rank = int64(i + 1)
	}
	return list, nil
}

func (b *fakeBoard) ClaimFingerprint(ctx context.Context, fp string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	if b.claimed[fp] {
		return false, nil
	}
	b.claimed[fp] = true
	return true, nil
}

// runWithClock runs fn and advances the mock clock until it returns.
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

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"race_arcade/internal/domain"
	httpserver "race_arcade/internal/http"
	"race_arcade/internal/http/handlers"
	"race_arcade/internal/repository"
	"race_arcade/internal/service"
	"race_arcade/internal/ws"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_SpendAndScore runs the credit and score endpoints against Postgres
// and checks the balance feed sees the debit.
func TestE2E_SpendAndScore(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	gin.SetMode(gin.TestMode)
	service.InitJWT("e2e-secret")

	users := repository.NewUserRepository(db)
	txs := repository.NewTransactionRepository(db)
	board := repository.NewLeaderboardRepository(db)
	sessions := repository.NewSessionRepository(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db))
	hub := ws.NewHub()

	ledger := service.NewLedgerService(users, audit, hub)
	scores := service.NewScoreService(board, users, sessions, nil, audit, nil)
	h := handlers.NewHandler(nil, ledger, scores, service.NewArchiveService(board, audit, nil), nil)
	health := handlers.NewHealthHandler(db.Ping, nil, "test")

	r := gin.New()
	httpserver.RegisterRoutes(r, h, health, hub, httpserver.RouteConfig{APIRateLimit: 1000, APIRateWindow: time.Minute})
	srv := httptest.NewServer(r)
	defer srv.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	_, err = users.EnsureUser(ctx, wallet)
	require.NoError(t, err)
	_, err = txs.RecordPurchase(ctx, &domain.Transaction{
		UserID: wallet, Amount: decimal.RequireFromString("0.001"), CreditsAdded: 1, TransactionHash: freshHash(t),
	})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?wallet="+wallet, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage() // ready
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections(wallet) == 1 }, time.Second, 10*time.Millisecond)

	var token string
	post := func(path string, body interface{}) *http.Response {
		b, _ := json.Marshal(body)
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(b))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return res
	}

	res := post("/api/v1/credits/use", domain.UseCreditRequest{WalletAddress: wallet})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "spending needs a wallet session")
	res.Body.Close()

	issued := time.Now().Unix()
	sig, err := crypto.Sign(accounts.TextHash([]byte(domain.WalletLoginMessage(wallet, issued))), key)
	require.NoError(t, err)
	res = post("/api/v1/auth/wallet", domain.WalletLoginRequest{WalletAddress: wallet, IssuedAt: issued, Signature: hexutil.Encode(sig)})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var login domain.WalletLoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&login))
	res.Body.Close()
	token = login.Token

	res = post("/api/v1/credits/use", domain.UseCreditRequest{WalletAddress: freshWallet(t)})
	assert.Equal(t, http.StatusForbidden, res.StatusCode, "a session cannot spend another wallet's credits")
	res.Body.Close()

	res = post("/api/v1/credits/use", domain.UseCreditRequest{WalletAddress: wallet})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var used domain.UseCreditResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&used))
	res.Body.Close()
	assert.Equal(t, int64(0), used.RemainingCredits)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"credits":0`)

	res = post("/api/v1/credits/use", domain.UseCreditRequest{WalletAddress: wallet})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var refused domain.ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&refused))
	res.Body.Close()
	assert.Equal(t, "insufficient_credits", refused.Code)

	sub := domain.ScoreSubmission{Wallet: wallet, Score: 800, DurationSeconds: 40, Distance: 300, SessionID: used.SessionID}
	res = post("/api/v1/scores", sub)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res = post("/api/v1/scores", sub)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "a session takes one score")
	res.Body.Close()
}

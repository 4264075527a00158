// purchase_smoke buys a credit package against a running backend with a local
// key, watches the balance feed, spends one credit and posts a score.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/big"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"race_arcade/internal/apiclient"
	"race_arcade/internal/chain"
	"race_arcade/internal/config"
	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
	"race_arcade/internal/purchase"
	"race_arcade/internal/scoring"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", "http://127.0.0.1:8080", "backend base url")
	pkg := flag.Int64("package", 1, "package to buy (credits)")
	pendingPath := flag.String("pending", ".pending_payment.json", "where an unconfirmed payment is kept")
	recheck := flag.Bool("recheck", false, "only re-check a previously stored payment")
	flag.Parse()

	key := mustEnv("SMOKE_PRIVATE_KEY")
	chainID, ok := new(big.Int).SetString(mustEnv("CHAIN_ID"), 10)
	if !ok {
		logger.Fatal("CHAIN_ID is invalid")
	}
	receiver := mustEnv("PAYMENT_RECEIVER")
	if !common.IsHexAddress(receiver) {
		logger.Fatal("PAYMENT_RECEIVER is not a valid address")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc, err := chain.Dial(ctx, mustEnv("CHAIN_RPC_URL"), chainID)
	if err != nil {
		logger.Fatal("dial rpc", "error", err)
	}
	defer rpc.Close()

	wallet, err := chain.NewKeyWallet(rpc, key)
	if err != nil {
		logger.Fatal("load key", "error", err)
	}
	account, _ := wallet.Account(ctx)
	address := strings.ToLower(account.Hex())
	logger.Info("smoke wallet", "address", address)

	api := apiclient.NewClient(*apiURL)
	payer := chain.NewPayer(wallet, rpc, chain.DefaultPayerConfig(chainID, common.HexToAddress(receiver), config.LoadCatalog()), nil)
	watcher := chain.NewWatcher(rpc, chain.NewFilePendingStore(*pendingPath), chain.DefaultWatcherConfig(), nil)

	flow := purchase.NewFlow(payer, watcher, api, nil)
	flow.Subscribe(func(s purchase.State) {
		logger.Info("purchase state", "phase", s.Phase, "credits", s.Credits, "tx_hash", s.TxHash, "message", s.Message)
	})

	go watchBalance(ctx, *apiURL, address)

	if err := flow.Connect(ctx, address); err != nil {
		logger.Fatal("load balance", "error", err)
	}

	if *recheck {
		err = flow.Recheck(ctx)
	} else {
		flow.Select(*pkg)
		err = flow.Buy(ctx)
	}
	if err != nil {
		if s := flow.State(); s.Phase == purchase.PhaseAwaitingRecheck {
			logger.Fatal("payment kept for recheck, run again with -recheck", "tx_hash", s.TxHash, "error", err)
		}
		logger.Fatal("purchase failed", "error", err, "message", domain.UserMessage(err))
	}

	// spend one credit and post a score for the session
	if err := api.Login(ctx, address, wallet.SignText); err != nil {
		logger.Fatal("wallet login", "error", err)
	}
	used, err := api.UseCredit(ctx, address, 1)
	if err != nil {
		logger.Fatal("use credit", "error", err, "message", domain.UserMessage(err))
	}
	logger.Info("session started", "session_id", used.SessionID, "remaining", used.RemainingCredits)

	sub := domain.ScoreSubmission{
		Wallet:          address,
		Score:           scoring.FinalScore(scoring.ModeStandard, 1234, scoring.ReachedMilestone(3)),
		DurationSeconds: 45,
		Distance:        812.5,
		Team:            "smoke",
		SessionID:       used.SessionID,
	}
	if err := scoring.NewSubmitter(api, nil).Submit(ctx, sub); err != nil {
		logger.Fatal("submit score", "error", err)
	}
	logger.Info("smoke complete", "score", sub.Score)

	// let the last feed message arrive
	time.Sleep(500 * time.Millisecond)
}

// watchBalance logs every balance push for address until ctx ends.
func watchBalance(ctx context.Context, apiURL, address string) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"wallet": {address}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Warn("balance feed unavailable", "error", err)
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if json.Unmarshal(msg, &env) == nil {
			logger.Info("feed", "type", env.Type, "payload", string(env.Payload))
		}
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal(key + " not set")
	}
	return v
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"race_arcade/internal/bot"
	"race_arcade/internal/cache"
	"race_arcade/internal/chain"
	"race_arcade/internal/config"
	"race_arcade/internal/db"
	httpServer "race_arcade/internal/http"
	"race_arcade/internal/http/handlers"
	"race_arcade/internal/http/middleware"
	"race_arcade/internal/logger"
	"race_arcade/internal/repository"
	"race_arcade/internal/service"
	"race_arcade/internal/ws"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rpc, err := chain.Dial(context.Background(), cfg.RPCURL, cfg.ChainID)
	if err != nil {
		logger.Fatal("failed to connect to chain rpc", "error", err)
	}
	defer rpc.Close()

	// Redis is optional: without it rate limiting is per instance and the
	// global board is served from Postgres.
	var global service.GlobalBoard
	optional := map[string]handlers.CheckFunc{
		"rpc": func(ctx context.Context) error {
			_, err := rpc.BlockNumber(ctx)
			return err
		},
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(cfg)
		if err != nil {
			logger.Warn("redis unavailable, continuing without it", "error", err)
		} else {
			defer rdb.Close()
			middleware.SetRedisClient(rdb.Client)
			global = rdb
			optional["redis"] = rdb.HealthCheck
		}
	}

	clk := clock.New()
	hub := ws.NewHub()

	users := repository.NewUserRepository(dbPool)
	txs := repository.NewTransactionRepository(dbPool)
	board := repository.NewLeaderboardRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)
	audit := service.NewAuditService(auditRepo)

	verifier := service.NewPaymentVerifier(rpc, users, txs, audit, hub, service.VerifierConfig{
		ChainID:    cfg.ChainID,
		Receiver:   cfg.PaymentReceiver,
		Catalog:    cfg.Catalog,
		Attempts:   cfg.VerifyAttempts,
		RetryDelay: cfg.VerifyRetryDelay,
	}, clk)
	ledger := service.NewLedgerService(users, audit, hub)
	scores := service.NewScoreService(board, users, sessions, global, audit, clk)
	archiver := service.NewArchiveService(board, audit, clk)

	scheduler, err := service.NewScheduler(cfg.ArchiveCron, archiver)
	if err != nil {
		logger.Fatal("invalid ARCHIVE_CRON", "error", err)
	}
	scheduler.Start()

	if cfg.TelegramBotToken != "" {
		adminBot, err := bot.NewAdminBot(cfg.TelegramBotToken, bot.Deps{
			Accounts:  users,
			Purchases: txs,
			Boards:    board,
			Audit:     auditRepo,
			Archiver:  archiver,
		}, cfg.TelegramAdminIDs)
		if err != nil {
			logger.Warn("admin bot disabled", "error", err)
		} else {
			verifier.SetNotifier(adminBot)
			go adminBot.Start()
			defer adminBot.Stop()
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := handlers.NewHandler(verifier, ledger, scores, archiver, cfg.Catalog)
	health := handlers.NewHealthHandler(dbPool.Ping, optional, version)
	httpServer.RegisterRoutes(r, h, health, hub, httpServer.RouteConfig{
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "chain_id", cfg.ChainID, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

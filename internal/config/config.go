package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	LogJSON     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Chain
	RPCURL          string
	ChainID         *big.Int
	PaymentReceiver common.Address
	Catalog         *domain.Catalog

	// Verifier
	VerifyAttempts   int
	VerifyRetryDelay time.Duration

	// Scheduled jobs
	ArchiveCron string

	APIRateLimit  int
	APIRateWindow time.Duration

	// Operator bot, disabled when the token is empty
	TelegramBotToken string
	TelegramAdminIDs []int64
}

// Load reads configuration from .env and the environment.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	rpcURL := os.Getenv("CHAIN_RPC_URL")
	if rpcURL == "" {
		logger.Fatal("CHAIN_RPC_URL is not set")
	}

	chainID, ok := new(big.Int).SetString(os.Getenv("CHAIN_ID"), 10)
	if !ok || chainID.Sign() <= 0 {
		logger.Fatal("CHAIN_ID is not set or invalid")
	}

	receiver := os.Getenv("PAYMENT_RECEIVER")
	if !common.IsHexAddress(receiver) {
		logger.Fatal("PAYMENT_RECEIVER is not a valid address", "value", receiver)
	}

	catalog := LoadCatalog()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,
		LogLevel:    envString("LOG_LEVEL", "info"),
		LogJSON:     os.Getenv("LOG_JSON") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		RPCURL:          rpcURL,
		ChainID:         chainID,
		PaymentReceiver: common.HexToAddress(receiver),
		Catalog:         catalog,

		VerifyAttempts:   envInt("VERIFY_RETRY_ATTEMPTS", 5),
		VerifyRetryDelay: envDuration("VERIFY_RETRY_DELAY", 3*time.Second),

		ArchiveCron: strings.TrimSpace(os.Getenv("ARCHIVE_CRON")),

		APIRateLimit:  envInt("API_RATE_LIMIT", 30),
		APIRateWindow: time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAdminIDs: envIDs("ADMIN_TELEGRAM_IDS"),
	}
}

// LoadCatalog builds the package catalog from PRICE_PACKAGE_{1,5,10}.
// Backend and purchase tools must read the same values.
func LoadCatalog() *domain.Catalog {
	catalog, err := domain.NewCatalog(map[int64]decimal.Decimal{
		1:  envDecimal("PRICE_PACKAGE_1", "0.001"),
		5:  envDecimal("PRICE_PACKAGE_5", "0.005"),
		10: envDecimal("PRICE_PACKAGE_10", "0.01"),
	})
	if err != nil {
		logger.Fatal("invalid package catalog", "error", err)
	}
	return catalog
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		logger.Warn("invalid integer in env, using default", "key", key, "value", v, "default", def)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logger.Warn("invalid duration in env, using default", "key", key, "value", v, "default", def)
	}
	return def
}

// envIDs parses a comma separated list of Telegram user ids, skipping bad entries.
func envIDs(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("invalid telegram id in env", "key", key, "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func envDecimal(key, def string) decimal.Decimal {
	v := envString(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		logger.Fatal("invalid decimal in env", "key", key, "value", v)
	}
	return d
}

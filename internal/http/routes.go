package http

import (
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/http/handlers"
	"race_arcade/internal/http/middleware"
	"race_arcade/internal/service"
	"race_arcade/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig carries the limits read from configuration.
type RouteConfig struct {
	APIRateLimit  int
	APIRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, cfg RouteConfig) {
	r.Use(middleware.RequestLogger(), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var apiLimit gin.HandlerFunc
	if middleware.RedisEnabled() {
		apiLimit = middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow)
	} else {
		apiLimit = middleware.SimpleRateLimit(cfg.APIRateLimit, cfg.APIRateWindow, nil)
	}

	v1 := r.Group("/api/v1")
	v1.Use(apiLimit)
	registerAPIRoutes(v1, h, cfg)

	// Live balance feed
	r.GET("/ws", walletLimit(cfg), ws.HandleWS(hub))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, cfg RouteConfig) {
	api.POST("/auth/wallet", h.WalletLogin)

	// Payments
	api.GET("/packages", h.Packages)
	api.POST("/payments/verify", h.VerifyPayment)

	// Credits
	api.GET("/credits/:wallet", walletLimit(cfg), h.GetCredits)
	api.POST("/credits/use", middleware.RequireWallet(), h.UseCredit)

	// Scores and leaderboards
	api.POST("/scores", middleware.RequireWallet(), h.SubmitScore)
	api.GET("/leaderboard/daily", h.DailyLeaderboard)
	api.GET("/leaderboard/global", h.GlobalLeaderboard)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(service.RoleScheduler))
	{
		admin.POST("/leaderboard/archive", h.ArchiveLeaderboard)
	}
}

// walletLimit bounds balance polling per wallet regardless of client IP.
func walletLimit(cfg RouteConfig) gin.HandlerFunc {
	return middleware.KeyedRateLimit("wallet_rl", cfg.APIRateLimit, cfg.APIRateWindow, func(c *gin.Context) string {
		raw := c.Param("wallet")
		if raw == "" {
			raw = c.Query("wallet")
		}
		wallet, err := domain.NormalizeWallet(raw)
		if err != nil {
			return ""
		}
		return wallet
	})
}

// mint_token prints a bearer token for the admin API, e.g. for an external
// scheduler calling POST /api/v1/admin/leaderboard/archive.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"race_arcade/internal/logger"
	"race_arcade/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", "archive-cron", "token subject")
	role := flag.String("role", service.RoleScheduler, "role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	token, err := service.GenerateJWT(*subject, *role, *ttl)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	fmt.Println(token)
}

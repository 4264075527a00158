package middleware

import (
	"net/http"
	"strings"

	"race_arcade/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletKey is where RequireWallet stores the token's wallet.
const WalletKey = "wallet"

// RequireRole accepts a bearer JWT whose role claim equals role.
// The token subject is stored under "subject".
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, role)
		if !ok {
			return
		}
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// RequireWallet accepts a player token and stores its wallet under WalletKey.
// Handlers compare it with the wallet named in the request.
func RequireWallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, service.RolePlayer)
		if !ok {
			return
		}
		c.Set(WalletKey, claims.Subject)
		c.Next()
	}
}

func bearerClaims(c *gin.Context, role string) (*service.TokenClaims, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing token", "code": "unauthorized"})
		return nil, false
	}

	claims, err := service.ParseJWT(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token", "code": "unauthorized"})
		return nil, false
	}
	if claims.Role != role {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden", "code": "forbidden"})
		return nil, false
	}
	return claims, true
}

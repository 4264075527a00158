package ws

import (
	"net/http"
	"os"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades /ws?wallet=0x... into a read-only balance feed.
func HandleWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := domain.NormalizeWallet(c.Query("wallet"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "wallet required"})
			return
		}

		allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(wallet, conn, hub)
		go client.Run()
	}
}

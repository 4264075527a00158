package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSimpleRateLimit_WindowResets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := clock.NewMock()

	r := gin.New()
	r.GET("/x", SimpleRateLimit(2, time.Minute, mock), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"), "limits are per client")

	mock.Add(61 * time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
}

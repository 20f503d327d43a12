package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 短窗口 200ms，最多 2 次
	limit := RateLimit(2, 200*time.Millisecond)
	router := gin.New()
	router.POST("/login", limit, func(c *gin.Context) { c.String(200, "ok") })
	router.POST("/forgot-password", limit, func(c *gin.Context) { c.String(200, "ok") })

	doReq := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", path, nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, 200, doReq("/login", "192.168.1.1").Code)
	assert.Equal(t, 200, doReq("/login", "192.168.1.1").Code)
	w3 := doReq("/login", "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
	assert.Contains(t, w3.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, w3.Header().Get("Retry-After"))

	// 不同 IP、不同路由互不影响
	assert.Equal(t, 200, doReq("/login", "192.168.1.2").Code)
	assert.Equal(t, 200, doReq("/forgot-password", "192.168.1.1").Code)

	// 窗口过后恢复
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 200, doReq("/login", "192.168.1.1").Code)
}

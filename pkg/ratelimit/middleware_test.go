package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewLimiter(RateLimitConfig{RPS: 1, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute}, nil)

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")
}

func TestLimiter_Evict(t *testing.T) {
	limiter := NewLimiter(RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute}, nil)

	now := time.Now()
	limiter.get("a", now.Add(-2*time.Minute))
	limiter.get("b", now)

	limiter.evict(now)

	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimit 按 IP + 路由的滑动窗口限流，超过 maxAttempts 返回 429
func RateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	var (
		mu    sync.Mutex
		store = make(map[string][]time.Time)
	)
	prune := func(ts []time.Time, cutoff time.Time) []time.Time {
		kept := ts[:0]
		for _, t := range ts {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		return kept
	}
	// 定期清理过期数据
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			cutoff := time.Now().Add(-window)
			for key, ts := range store {
				if kept := prune(ts, cutoff); len(kept) == 0 {
					delete(store, key)
				} else {
					store[key] = kept
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := c.ClientIP() + " " + c.FullPath()
		now := time.Now()

		mu.Lock()
		ts := prune(store[key], now.Add(-window))
		if len(ts) >= maxAttempts {
			store[key] = ts
			mu.Unlock()
			c.Header("Retry-After", retryAfter(ts[0], window, now))
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, please try again later.")
			return
		}
		store[key] = append(ts, now)
		mu.Unlock()
		c.Next()
	}
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) string {
	wait := oldest.Add(window).Sub(now)
	secs := int(wait.Seconds())
	if wait > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

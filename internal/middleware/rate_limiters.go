package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor pairs a per-IP rate limiter with the last time that IP was seen,
// so idle entries can be expired.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitByIP applies token-bucket rate limiting per client IP. rps is the
// sustained rate, burst the bucket depth. Entries idle longer than expiration
// are dropped on each cleanupInterval tick.
func RateLimitByIP(rps, burst int, cleanupInterval, expiration time.Duration) gin.HandlerFunc {
	var visitors sync.Map

	go func() {
		for range time.Tick(cleanupInterval) {
			visitors.Range(func(key, value interface{}) bool {
				if time.Since(value.(*visitor).lastSeen) > expiration {
					visitors.Delete(key)
				}
				return true
			})
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		actual, _ := visitors.LoadOrStore(ip, &visitor{
			limiter:  rate.NewLimiter(rate.Limit(rps), burst),
			lastSeen: time.Now(),
		})

		v := actual.(*visitor)
		v.lastSeen = time.Now()

		if !v.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Wait a moment and try again."})
			c.Abort()
			return
		}

		c.Next()
	}
}

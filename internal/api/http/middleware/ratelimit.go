package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
)

// GenerationRateLimiter caps how often one user may hit the generation
// endpoints. Extraction and use-case/test-case generation run NLP models
// upstream, so a single impatient user can otherwise monopolize them.
type GenerationRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewGenerationRateLimiter allows ratePerSecond sustained calls with the
// given burst, per user.
func NewGenerationRateLimiter(ratePerSecond float64, burst int) *GenerationRateLimiter {
	return &GenerationRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (l *GenerationRateLimiter) limiterFor(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	return lim
}

// Handler rejects over-budget requests with 429.
func (l *GenerationRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.FirebaseUID(c)
		if userID == "" {
			userID = c.ClientIP()
		}
		if !l.limiterFor(userID).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "generation rate limit exceeded, try again shortly",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

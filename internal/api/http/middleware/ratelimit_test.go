package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
)

func limitedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, c.GetHeader("X-Test-User")) })
	limiter := NewGenerationRateLimiter(1, 2)
	r.POST("/generate", limiter.Handler(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func post(r *gin.Engine, user string) int {
	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestBurstThenTooManyRequests(t *testing.T) {
	r := limitedRouter()

	assert.Equal(t, http.StatusOK, post(r, "u1"))
	assert.Equal(t, http.StatusOK, post(r, "u1"))
	assert.Equal(t, http.StatusTooManyRequests, post(r, "u1"))
}

func TestLimitIsPerUser(t *testing.T) {
	r := limitedRouter()

	assert.Equal(t, http.StatusOK, post(r, "u1"))
	assert.Equal(t, http.StatusOK, post(r, "u1"))
	assert.Equal(t, http.StatusTooManyRequests, post(r, "u1"))

	// a different user has an untouched budget
	assert.Equal(t, http.StatusOK, post(r, "u2"))
}

package auth

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/users"
)

// Middleware validates the Firebase ID token, upserts the local user record
// and stashes the identity plus the raw token on the request context. The
// raw token is what the upstream clients forward.
func Middleware(authClient *auth.Client, userRepo *users.Repo, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			c.Abort()
			return
		}

		decoded, err := authClient.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			log.Debug("token verification failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		email, _ := decoded.Claims["email"].(string)
		name, _ := decoded.Claims["name"].(string)
		picture, _ := decoded.Claims["picture"].(string)

		uid, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			FirebaseUID: decoded.UID,
			Email:       email,
			DisplayName: name,
			PhotoURL:    picture,
		})
		if err != nil {
			log.Error("ensure user failed",
				zap.String("firebase_uid", decoded.UID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ensure user failed"})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, decoded.UID)
		c.Set(CtxUserDBID, uid)
		if email != "" {
			c.Set(CtxEmail, email)
		}
		c.Request = c.Request.WithContext(WithRawToken(c.Request.Context(), token))
		c.Next()
	}
}

// extractToken pulls the Bearer token from the Authorization header.
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}

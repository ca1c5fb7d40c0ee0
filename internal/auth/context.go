package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxUserDBID    = "user_db_id"
	CtxEmail       = "email"
)

type rawTokenKey struct{}

// WithRawToken stores the caller's bearer token so upstream clients can
// forward it.
func WithRawToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, rawTokenKey{}, token)
}

// RawTokenFromContext returns the bearer token the caller presented, or "".
func RawTokenFromContext(ctx context.Context) string {
	if tok, ok := ctx.Value(rawTokenKey{}).(string); ok {
		return tok
	}
	return ""
}

// FirebaseUID returns the verified Firebase UID of the request.
func FirebaseUID(c *gin.Context) string {
	return c.GetString(CtxFirebaseUID)
}

// UserDBID returns the local user id of the request.
func UserDBID(c *gin.Context) string {
	v := c.GetString(CtxUserDBID)
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

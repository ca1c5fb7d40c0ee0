package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/users"
)

type profileStore interface {
	GetByFirebaseUID(ctx context.Context, firebaseUID string) (*users.Profile, error)
}

// RegisterProfile exposes the caller's own stored profile. The auth middleware
// upserts the row on every request, so a read miss means storage trouble; the
// verified token claims still identify the user, so the handler degrades to
// them instead of failing the request.
func RegisterProfile(rg *gin.RouterGroup, store profileStore, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	rg.GET("/me", func(c *gin.Context) {
		uid := FirebaseUID(c)
		p, err := store.GetByFirebaseUID(c.Request.Context(), uid)
		if err != nil {
			log.Warn("profile read failed",
				zap.String("user_db_id", UserDBID(c)), zap.Error(err))
			c.JSON(http.StatusOK, users.Profile{
				ID:          UserDBID(c),
				FirebaseUID: uid,
				Email:       c.GetString(CtxEmail),
			})
			return
		}
		c.JSON(http.StatusOK, p)
	})
}

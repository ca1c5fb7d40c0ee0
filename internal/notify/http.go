package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
)

// RegisterHTTP exposes the toast surface: polling, manual dismissal, and the
// websocket stream.
func RegisterHTTP(rg *gin.RouterGroup, bus *Bus, hub *Hub) {
	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"toasts": bus.Active(auth.FirebaseUID(c))})
	})

	rg.DELETE("/:toastID", func(c *gin.Context) {
		if !bus.Dismiss(auth.FirebaseUID(c), c.Param("toastID")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "toast not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"dismissed": true})
	})

	rg.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c, auth.FirebaseUID(c))
	})
}

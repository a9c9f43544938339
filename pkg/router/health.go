package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	// Liveness only; MongoDB is not touched here
	r.Engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if r.Container.Health != nil {
		r.Engine.GET("/health/details", r.Container.Health.Handler())
	}
}

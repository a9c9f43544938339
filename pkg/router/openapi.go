package router

import (
	"net/http"
	"os"

	"dpchat/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// AddOpenAPIValidation validates requests against the schema at schemaPath
// and serves the schema at /api/docs/openapi.yaml. Call before SetupRoutes.
// A missing or broken schema disables validation without failing startup.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if !fileExists(schemaPath) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "Failed to initialize OpenAPI validator")
		return
	}

	r.Engine.Use(v.Middleware())
	r.Engine.GET("/api/docs/openapi.yaml", func(c *gin.Context) {
		c.Header("Content-Type", "application/yaml")
		c.File(schemaPath)
	})
	r.Engine.GET("/api/docs/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": v.Version()})
	})

	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath, "version", v.Version())
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

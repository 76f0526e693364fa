package main

import (
	"database/sql"
	"time"

	"ivr-platform/internal/ivr"
	"ivr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, machine *ivr.Machine) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// PBX webhooks (public by design; the platform cannot sign requests).
	ivr.NewHTTPHandler(machine).Register(r)
}

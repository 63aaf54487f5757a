package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/auroralabs/aurora-backend/internal/postgres"
)

// StatusHandler serves the public status and health endpoints.
type StatusHandler struct {
	db      postgres.DB
	version string
}

// NewStatusHandler creates a StatusHandler. version is stamped into the
// status payload.
func NewStatusHandler(db postgres.DB, version string) *StatusHandler {
	return &StatusHandler{db: db, version: version}
}

// Register mounts the status routes on rg.
func (h *StatusHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/status", h.Status)
	rg.GET("/health", h.Health)
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(c *gin.Context) {
	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     h.version,
		"server_time": now.Format(time.RFC3339),
		"timestamp":   now.Unix(),
	})
}

// Health handles GET /api/health, probing the database.
func (h *StatusHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.QueryRow(ctx, "SELECT 1").Scan(new(int)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/session"
)

// settingsSvc is the orchestrator surface consumed by SettingsHandler.
type settingsSvc interface {
	UpdateSettings(ctx context.Context, sess *session.Session, upd accounts.SettingsUpdate) (*session.AccountInfo, error)
}

// SettingsHandler handles the /api/account/settings routes.
type SettingsHandler struct {
	sessions settingsSvc
	logger   *zap.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(sessions settingsSvc, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{sessions: sessions, logger: logger}
}

// Register mounts the settings routes on rg.
func (h *SettingsHandler) Register(rg *gin.RouterGroup, mw *Middleware) {
	acct := rg.Group("/account", mw.RequireAuth())
	{
		acct.GET("/settings", h.Get)
		acct.PUT("/settings", h.Update)
	}
}

type settingsResponse struct {
	Username *string `json:"username"`
}

// Get handles GET /api/account/settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	sess := SessionFromCtx(c)
	c.JSON(http.StatusOK, settingsResponse{Username: sess.Account.Username})
}

// Update handles PUT /api/account/settings. Only fields present in the
// payload change.
func (h *SettingsHandler) Update(c *gin.Context) {
	sess := SessionFromCtx(c)
	var upd accounts.SettingsUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.sessions.UpdateSettings(c.Request.Context(), sess, upd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse{Username: info.Username})
}

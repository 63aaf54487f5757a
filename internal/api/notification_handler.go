package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/notifications"
	"github.com/auroralabs/aurora-backend/internal/session"
)

// notificationSvc is the store surface consumed by NotificationHandler.
type notificationSvc interface {
	Create(ctx context.Context, accountID uuid.UUID, level notifications.Level, message string) (*notifications.Notification, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*notifications.Notification, error)
	UnreadCount(ctx context.Context, accountID uuid.UUID) (int, error)
	UpdateRead(ctx context.Context, id, accountID uuid.UUID, read bool) (*notifications.Notification, error)
	UpdateReadBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID, read bool) ([]*notifications.Notification, error)
	Delete(ctx context.Context, id, accountID uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID) (int, error)
}

// NotificationHandler handles the /api/notifications routes. Every route is
// protected; the owning account comes from the session, never the payload.
type NotificationHandler struct {
	store      notificationSvc
	translator *session.Translator
	logger     *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(store notificationSvc, translator *session.Translator, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, translator: translator, logger: logger}
}

// Register mounts the notification routes on rg.
func (h *NotificationHandler) Register(rg *gin.RouterGroup, mw *Middleware) {
	n := rg.Group("/notifications", mw.RequireAuth())
	{
		n.POST("", h.Create)
		n.GET("", h.List)
		n.GET("/unread-count", h.UnreadCount)
		n.PATCH("/batch", h.UpdateReadBatch)
		n.DELETE("/batch", h.DeleteBatch)
		n.PATCH("/:id", h.UpdateRead)
		n.DELETE("/:id", h.Delete)
	}
}

type createNotificationRequest struct {
	Level   string `json:"level"   binding:"required"`
	Message string `json:"message" binding:"required"`
}

type updateReadRequest struct {
	Read *bool `json:"read" binding:"required"`
}

type batchUpdateRequest struct {
	IDs  []uuid.UUID `json:"ids"  binding:"required"`
	Read *bool       `json:"read" binding:"required"`
}

type batchDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

// Create handles POST /api/notifications.
func (h *NotificationHandler) Create(c *gin.Context) {
	sess := SessionFromCtx(c)
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.store.Create(c.Request.Context(), sess.Account.ID, notifications.Level(req.Level), req.Message)
	if err != nil {
		writeError(c, h.translator.Translate("create_notification", err))
		return
	}
	RecordNotificationCreated()
	c.JSON(http.StatusCreated, n)
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	sess := SessionFromCtx(c)
	list, err := h.store.List(c.Request.Context(), sess.Account.ID)
	if err != nil {
		writeError(c, h.translator.Translate("list_notifications", err))
		return
	}
	c.JSON(http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	sess := SessionFromCtx(c)
	count, err := h.store.UnreadCount(c.Request.Context(), sess.Account.ID)
	if err != nil {
		writeError(c, h.translator.Translate("unread_count", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// UpdateRead handles PATCH /api/notifications/:id.
func (h *NotificationHandler) UpdateRead(c *gin.Context) {
	sess := SessionFromCtx(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	var req updateReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.store.UpdateRead(c.Request.Context(), id, sess.Account.ID, *req.Read)
	if err != nil {
		writeError(c, h.translator.Translate("update_notification", err))
		return
	}
	c.JSON(http.StatusOK, n)
}

// UpdateReadBatch handles PATCH /api/notifications/batch. Ids not owned by
// the caller are skipped; the updated rows come back.
func (h *NotificationHandler) UpdateReadBatch(c *gin.Context) {
	sess := SessionFromCtx(c)
	var req batchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateReadBatch(c.Request.Context(), req.IDs, sess.Account.ID, *req.Read)
	if err != nil {
		writeError(c, h.translator.Translate("batch_update_notifications", err))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/notifications/:id. Idempotent.
func (h *NotificationHandler) Delete(c *gin.Context) {
	sess := SessionFromCtx(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), id, sess.Account.ID); err != nil {
		writeError(c, h.translator.Translate("delete_notification", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

// DeleteBatch handles DELETE /api/notifications/batch and reports how many
// rows were actually removed.
func (h *NotificationHandler) DeleteBatch(c *gin.Context) {
	sess := SessionFromCtx(c)
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.store.DeleteBatch(c.Request.Context(), req.IDs, sess.Account.ID)
	if err != nil {
		writeError(c, h.translator.Translate("batch_delete_notifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("%d notification(s) deleted", deleted),
		"deleted_count": deleted,
	})
}

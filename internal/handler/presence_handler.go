package handler

import (
	"net/http"

	"inmopresence/internal/middleware"
	"inmopresence/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PresenceHandler struct {
	svc    *service.PresenceService
	logger *zap.Logger
}

func NewPresenceHandler(svc *service.PresenceService, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{svc: svc, logger: logger}
}

// OnlineAgents serves the public widget. The envelope keeps "no one
// online" and "query failed" distinguishable: consumers must branch on
// ok before reading rows.
func (h *PresenceHandler) OnlineAgents(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	rows, err := h.svc.OnlineAgents(c.Request.Context(), c.Query("role"))
	if err != nil {
		h.logger.Error("online agents query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "query_failed", "rows": []service.OnlineAgent{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rows": rows})
}

// Heartbeat refreshes the caller's presence row. Anonymous calls are a
// no-op success; a session without identity has no presence to record.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": "no_user"})
		return
	}
	if err := h.svc.Heartbeat(c.Request.Context(), userID); err != nil {
		h.logger.Warn("heartbeat write failed", zap.String("user_id", userID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "write_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Offline deletes the caller's presence row. Idempotent, and the same
// anonymous no-op rule as Heartbeat applies.
func (h *PresenceHandler) Offline(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": "no_user"})
		return
	}
	if err := h.svc.Offline(c.Request.Context(), userID); err != nil {
		h.logger.Warn("offline write failed", zap.String("user_id", userID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "write_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

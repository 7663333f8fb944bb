package handler

import (
	"errors"
	"net/http"

	"inmopresence/internal/middleware"
	"inmopresence/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc         *service.AuthService
	presenceSvc *service.PresenceService
	logger      *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, presenceSvc *service.PresenceService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, presenceSvc: presenceSvc, logger: logger}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, access, refresh, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	// First heartbeat of the session; best effort, the emitter takes
	// over from here.
	if err := h.presenceSvc.Heartbeat(c.Request.Context(), p.ID); err != nil {
		h.logger.Warn("presence on login failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          p,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	access, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Logout clears presence synchronously before responding so the agent
// disappears from the public widget immediately instead of waiting out
// the staleness threshold.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if ok {
		if err := h.presenceSvc.Offline(c.Request.Context(), userID); err != nil {
			h.logger.Warn("presence clear on logout failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

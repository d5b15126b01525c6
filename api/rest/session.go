package rest

import (
	"errors"
	"net/http"

	"github.com/agathamc/regserver/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes session validation to the onboarding pages.
type SessionHandler struct {
	sessions *session.Service
	logger   *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *session.Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type validateRequest struct {
	Sess string `json:"sess"`
}

// Validate handles POST /validate.
func (h *SessionHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Sess == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "pass_failed",
			"message": "Session parameter is missing",
		})
		return
	}

	username, err := h.sessions.Validate(c.Request.Context(), req.Sess)
	switch {
	case errors.Is(err, session.ErrInvalid):
		c.JSON(http.StatusOK, gin.H{"status": "pass_failed"})
	case errors.Is(err, session.ErrExpired):
		c.JSON(http.StatusOK, gin.H{"status": "pass_failed", "message": "Session has expired"})
	case err != nil:
		h.logger.Error("session validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "pass_failed",
			"message": "Internal server error",
		})
	default:
		c.JSON(http.StatusOK, gin.H{"username": username})
	}
}

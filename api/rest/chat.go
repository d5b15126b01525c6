package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/agathamc/regserver/chat"
	"github.com/agathamc/regserver/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler relays assistant conversations for logged-in players.
type ChatHandler struct {
	sessions *session.Service
	proxy    *chat.Proxy
	logger   *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(sessions *session.Service, proxy *chat.Proxy, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{sessions: sessions, proxy: proxy, logger: logger}
}

type chatRequest struct {
	Sess    string `json:"sess" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Chat handles POST /chat and streams the upstream completion back as SSE.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing parameters"})
		return
	}

	ctx := c.Request.Context()
	username, err := h.sessions.Validate(ctx, req.Sess)
	switch {
	case errors.Is(err, session.ErrInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	case errors.Is(err, session.ErrExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session has expired"})
		return
	case err != nil:
		h.logger.Error("session validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	wrote := false
	err = h.proxy.Stream(ctx, username, req.Message, func(payload json.RawMessage) error {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		wrote = true
		return nil
	})
	if err != nil {
		h.logger.Error("chat stream failed",
			zap.String("username", username),
			zap.Error(err))
		if !wrote {
			c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		}
	}
}

package rest

import (
	"net/http"
	"strconv"

	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/regflow"
	"github.com/agathamc/regserver/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	store  *regflow.Store
	mgr    *db.Manager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store *regflow.Store, mgr *db.Manager, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, mgr: mgr, sched: sched, logger: logger}
}

// Status returns server health information.
// GET /api/admin/status
func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"db_reconnects":   h.mgr.Reconnects(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListFlows returns a page of registration flows.
// GET /api/admin/flows?limit=&offset=
func (h *AdminHandler) ListFlows(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	flows, err := h.store.ListFlows(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("flow listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows, "count": len(flows)})
}

// FlowDetail returns one flow with its verification history.
// GET /api/admin/flows/:name
func (h *AdminHandler) FlowDetail(c *gin.Context) {
	name := c.Param("name")
	flow, err := h.store.FindByName(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("flow lookup failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if flow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	history, err := h.store.ListHistory(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": flow, "history": history})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

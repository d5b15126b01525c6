package rest

import (
	"net/http"
	"time"

	"github.com/agathamc/regserver/audit"
	"github.com/agathamc/regserver/idverify"
	"github.com/agathamc/regserver/metrics"
	mw "github.com/agathamc/regserver/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VerifyHandler drives the identity-verification stage: initiating a
// verification session with the provider and polling its result.
type VerifyHandler struct {
	initiator *idverify.Initiator
	checker   *idverify.Checker
	auditor   *audit.Service
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewVerifyHandler creates a VerifyHandler. auditor and m may be nil.
func NewVerifyHandler(initiator *idverify.Initiator, checker *idverify.Checker, auditor *audit.Service, m *metrics.Metrics, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{initiator: initiator, checker: checker, auditor: auditor, metrics: m, logger: logger}
}

type verifyIDRequest struct {
	Name     string `json:"name" binding:"required"`
	Realname string `json:"realname" binding:"required"`
	ID       string `json:"id" binding:"required"`
}

// VerifyID handles POST /verify-id.
func (h *VerifyHandler) VerifyID(c *gin.Context) {
	start := time.Now()
	var req verifyIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing parameters"})
		return
	}

	status, body, err := h.initiator.Initiate(c.Request.Context(), req.Name, req.Realname, req.ID)
	if err != nil {
		h.logger.Error("identity verification init failed",
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.String("name", req.Name),
			zap.Error(err))
		h.observe(c, req.Name, "error", err.Error(), start)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	switch status {
	case idverify.InitNoProgress:
		h.observe(c, req.Name, "noprogress", "", start)
		c.JSON(http.StatusOK, gin.H{"status": "noprogress"})
	case idverify.InitAlready:
		h.observe(c, req.Name, "already", "", start)
		c.JSON(http.StatusOK, gin.H{"status": "already"})
	case idverify.InitBusy:
		h.observe(c, req.Name, "busy", "", start)
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "busy"})
	default:
		h.observe(c, req.Name, "started", "", start)
		// The provider response carries the certify URL the page needs; it
		// is forwarded verbatim.
		c.Data(http.StatusOK, "application/json", body)
	}
}

// VerifyCheck handles GET /verify-check.
func (h *VerifyHandler) VerifyCheck(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "name parameter is missing"})
		return
	}

	result, err := h.checker.Check(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("verification status check failed",
			zap.String("name", name),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *VerifyHandler) observe(c *gin.Context, name, result, errMsg string, start time.Time) {
	if h.metrics != nil {
		h.metrics.KYCInitiated(result)
	}
	if h.auditor != nil {
		h.auditor.Log(audit.Entry{
			TraceID:    mw.GetTraceID(c),
			Name:       name,
			Action:     "idverify_init",
			Detail:     map[string]string{"result": result},
			Error:      errMsg,
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		})
	}
}

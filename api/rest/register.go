package rest

import (
	"net/http"
	"net/url"
	"time"

	"github.com/agathamc/regserver/audit"
	"github.com/agathamc/regserver/metrics"
	mw "github.com/agathamc/regserver/middleware"
	"github.com/agathamc/regserver/mojang"
	"github.com/agathamc/regserver/regflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Redirect targets served from the static pages directory.
const (
	pageIDVerify = "/idverify.html"
	pageAlready  = "/mojang_already.html"
	pageError    = "/mojang_error.html"
)

// Shown when an unconfirmed flow already exists. A dead end on purpose: the
// player has to confirm the existing flow, nothing proceeds automatically.
const confirmPendingHTML = "<h2>您此前创建过一个注册流程，请直接点击确认。</h2>"

// RegisterHandler drives the account-ownership stage: it runs the federated
// auth chain for the submitted authorization code and applies the
// flow-creation decision.
type RegisterHandler struct {
	chain   *mojang.Client
	flows   *regflow.Service
	auditor *audit.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRegisterHandler creates a RegisterHandler. auditor and m may be nil.
func NewRegisterHandler(chain *mojang.Client, flows *regflow.Service, auditor *audit.Service, m *metrics.Metrics, logger *zap.Logger) *RegisterHandler {
	return &RegisterHandler{chain: chain, flows: flows, auditor: auditor, metrics: m, logger: logger}
}

type finishMojangRequest struct {
	Code string `json:"code" binding:"required"`
}

// FinishMojang handles POST /finish-mojang.
func (h *RegisterHandler) FinishMojang(c *gin.Context) {
	start := time.Now()
	var req finishMojangRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Redirect(http.StatusFound, pageError)
		return
	}

	ctx := c.Request.Context()
	profile, err := h.chain.Authenticate(ctx, req.Code)
	if err != nil {
		h.logger.Error("mojang authentication chain failed",
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		if h.metrics != nil {
			h.metrics.ChainFailed()
		}
		h.audit(c, "", "mojang_chain", nil, err.Error(), start)
		c.Redirect(http.StatusFound, pageError)
		return
	}
	if h.metrics != nil {
		h.metrics.ChainSucceeded()
	}

	outcome, err := h.flows.RecordOwnership(ctx, profile.Name)
	if err != nil {
		h.logger.Error("registration flow decision failed",
			zap.String("name", profile.Name),
			zap.Error(err))
		h.audit(c, profile.Name, "flow_decision", nil, err.Error(), start)
		c.Redirect(http.StatusFound, pageError)
		return
	}
	if h.metrics != nil {
		h.metrics.FlowDecided(outcome.String())
	}
	h.audit(c, profile.Name, "flow_decision",
		map[string]string{"outcome": outcome.String(), "account_id": profile.ID}, "", start)

	switch outcome {
	case regflow.OutcomeCreated:
		c.Redirect(http.StatusFound, pageIDVerify+"?id="+url.QueryEscape(profile.Name))
	case regflow.OutcomeAwaitConfirmation:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(confirmPendingHTML))
	default:
		c.Redirect(http.StatusFound, pageAlready)
	}
}

func (h *RegisterHandler) audit(c *gin.Context, name, action string, detail interface{}, errMsg string, start time.Time) {
	if h.auditor == nil {
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Name:       name,
		Action:     action,
		Detail:     detail,
		Error:      errMsg,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}

package idverify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agathamc/regserver/cache"
	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/regflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InitStatus is the outcome of an initiation attempt.
type InitStatus int

const (
	// InitStarted: the provider accepted the check; its response body is
	// returned verbatim (it carries the liveness-flow handoff URL).
	InitStarted InitStatus = iota
	// InitAlready: the identity is already verified; the provider must
	// never be called again for this name.
	InitAlready
	// InitNoProgress: no registration flow exists for this name.
	InitNoProgress
	// InitBusy: another initiation for the same name is in flight.
	InitBusy
)

const initLockTTL = 30 * time.Second

// livingPageStyle is the rendering descriptor embedded in every provider
// request.
var livingPageStyle = map[string]string{
	"progressStaGradient": "#1781b5",
	"progressEndGradient": "#66a9c9",
	"progressBgColor":     "#ddd",
	"maskColor":           "#fff",
	"topLabelColor":       "#000",
}

// Initiator starts the asynchronous identity-document + liveness check with
// the KYC provider.
type Initiator struct {
	store  *regflow.Store
	cache  cache.Cache
	cfg    config.IDVerifyConfig
	http   *http.Client
	logger *zap.Logger
}

// NewInitiator creates an Initiator. A nil httpClient gets a 30s-timeout
// default.
func NewInitiator(store *regflow.Store, c cache.Cache, cfg config.IDVerifyConfig, httpClient *http.Client, logger *zap.Logger) *Initiator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Initiator{store: store, cache: c, cfg: cfg, http: httpClient, logger: logger}
}

// Initiate starts a check for name with the claimed real name and ID number.
// The history row is written only after the provider accepted the call, so a
// failed initiation leaves no audit trace.
func (i *Initiator) Initiate(ctx context.Context, name, realname, idNumber string) (InitStatus, []byte, error) {
	flow, err := i.store.FindByName(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	if flow == nil {
		return InitNoProgress, nil, nil
	}
	if flow.IdentityVerified() {
		return InitAlready, nil, nil
	}

	lockKey := "idverify:init:" + name
	ok, err := i.cache.SetNX(ctx, lockKey, "1", initLockTTL)
	if err != nil {
		i.logger.Warn("initiation lock unavailable, proceeding", zap.Error(err))
	} else if !ok {
		return InitBusy, nil, nil
	}

	body, err := i.callProvider(ctx, name, realname, idNumber)
	if err != nil {
		// Free the lock so the player can retry immediately.
		_ = i.cache.Del(ctx, lockKey)
		return 0, nil, err
	}

	if err := i.store.AppendHistory(ctx, name); err != nil {
		return 0, nil, err
	}
	i.logger.Info("identity verification initiated", zap.String("name", name))
	return InitStarted, body, nil
}

func (i *Initiator) callProvider(ctx context.Context, name, realname, idNumber string) ([]byte, error) {
	style, _ := json.Marshal(livingPageStyle)
	nonce := uuid.NewString()

	form := url.Values{
		"bizId":           {nonce},
		"idName":          {realname},
		"idNumber":        {idNumber},
		"livingPageStyle": {string(style)},
		"livingType":      {"13"},
		"needVideo":       {"true"},
		"notifyUrl":       {i.cfg.NotifyURL + "?user=" + url.QueryEscape(name)},
		"returnUrl":       {i.cfg.ReturnURL + "?user=" + url.QueryEscape(name)},
		"type":            {"1"},
		"useStrictMode":   {"true"},
		"useZIMInAlipay":  {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		i.cfg.Host+i.cfg.Path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "APPCODE "+i.cfg.AppCode)
	req.Header.Set("X-Ca-Nonce", nonce)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := i.http.Do(req)
	if err != nil {
		// The app code is a long-lived credential; log only its length.
		i.logger.Error("identity verification call failed",
			zap.Int("app_code_length", len(i.cfg.AppCode)),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

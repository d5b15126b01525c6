package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Proxy forwards player chat prompts to the upstream completion service and
// relays its SSE stream. Single attempt, no retry: a broken stream surfaces
// to the client, which reconnects on its own.
type Proxy struct {
	gw     *db.Gateway
	cfg    config.ChatConfig
	http   *http.Client
	logger *zap.Logger
}

// NewProxy creates a Proxy. A nil httpClient gets a default without a global
// timeout, since completions stream for longer than any sane request cap.
func NewProxy(gw *db.Gateway, cfg config.ChatConfig, httpClient *http.Client, logger *zap.Logger) *Proxy {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Proxy{gw: gw, cfg: cfg, http: httpClient, logger: logger}
}

// MemoryKey returns the conversation-memory key for name, or "" when the
// player has none.
func (p *Proxy) MemoryKey(ctx context.Context, name string) (string, error) {
	var row model.AIMemory
	err := p.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Where("name = ?", name).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.KeyID, nil
}

// Stream sends message upstream on behalf of name and invokes emit once per
// received data event.
func (p *Proxy) Stream(ctx context.Context, name, message string, emit func(payload json.RawMessage) error) error {
	memoryKey, err := p.MemoryKey(ctx, name)
	if err != nil {
		return err
	}

	input := map[string]interface{}{"prompt": message}
	if memoryKey != "" {
		input["memory_id"] = memoryKey
	}
	raw, err := json.Marshal(map[string]interface{}{
		"input":      input,
		"parameters": map[string]interface{}{"incremental_output": true},
		"debug":      map[string]interface{}{},
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/v1/apps/%s/completion", p.cfg.Host, p.cfg.AppID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-SSE", "enable")

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Error("completion request failed",
			zap.Int("api_key_length", len(p.cfg.APIKey)),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("completion request failed with status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if !json.Valid([]byte(payload)) {
			p.logger.Warn("skipping malformed upstream event", zap.Int("length", len(payload)))
			continue
		}
		if err := emit(json.RawMessage(payload)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

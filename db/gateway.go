package db

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gateway is the only database access path the stores use. Every operation
// gets the same bounded resilience: liveness check up front, then exactly
// one reconnect-and-retry when the operation itself fails with a
// connection-lost error. Non-transient errors propagate unmodified on the
// first attempt.
type Gateway struct {
	mgr    *Manager
	logger *zap.Logger
}

// NewGateway creates a Gateway over the given Manager.
func NewGateway(mgr *Manager, logger *zap.Logger) *Gateway {
	return &Gateway{mgr: mgr, logger: logger}
}

// Do runs op against the live handle.
func (g *Gateway) Do(ctx context.Context, op func(tx *gorm.DB) error) error {
	if err := g.mgr.CheckLiveness(ctx); err != nil {
		return err
	}
	err := op(g.mgr.DB().WithContext(ctx))
	if err == nil || !IsConnLost(err) {
		return err
	}
	g.logger.Warn("connection lost mid-query, retrying once after reconnect", zap.Error(err))
	if rerr := g.mgr.Reconnect(); rerr != nil {
		return rerr
	}
	return op(g.mgr.DB().WithContext(ctx))
}

// Manager exposes the underlying connection manager (for health probes and
// metrics).
func (g *Gateway) Manager() *Manager {
	return g.mgr
}

package session

import (
	"context"
	"errors"
	"time"

	"github.com/agathamc/regserver/cache"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalid covers unknown and disabled sessions.
	ErrInvalid = errors.New("session: invalid")
	// ErrExpired means the session existed but its expiry has passed.
	ErrExpired = errors.New("session: expired")
)

const cacheTTLCap = time.Minute

// Service validates login sessions issued by the external onboarding
// frontend. Read-only: sessions are never created or refreshed here.
type Service struct {
	gw     *db.Gateway
	cache  cache.Cache
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(gw *db.Gateway, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{gw: gw, cache: c, logger: logger}
}

// Validate returns the username bound to sess. Validation results are
// cached briefly because the chat proxy validates on every message.
func (s *Service) Validate(ctx context.Context, sess string) (string, error) {
	key := "session:" + sess
	if v, err := s.cache.Get(ctx, key); err == nil {
		return v, nil
	}

	var row model.Session
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Where("session = ?", sess).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalid
	}
	if err != nil {
		return "", err
	}
	if row.Status != 1 {
		return "", ErrInvalid
	}
	remaining := time.Until(time.Unix(row.Expiry, 0))
	if remaining <= 0 {
		return "", ErrExpired
	}

	ttl := remaining
	if ttl > cacheTTLCap {
		ttl = cacheTTLCap
	}
	if err := s.cache.Set(ctx, key, row.Username, ttl); err != nil {
		s.logger.Warn("session cache write failed", zap.Error(err))
	}
	return row.Username, nil
}

// CleanupExpired deletes sessions whose expiry has passed. Run periodically
// by the scheduler.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	var removed int64
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		res := tx.Where("expiry <= ?", time.Now().Unix()).Delete(&model.Session{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agathamc/regserver/config"
	dbmysql "github.com/agathamc/regserver/db/mysql"
	dbsqlite "github.com/agathamc/regserver/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ModeMySQL        = "mysql"
	ModeSQLite       = "sqlite"
	ModeSQLiteMemory = "sqlite_memory"
)

const (
	initAttempts = 5
	initBackoff  = 5 * time.Second
)

// Manager owns the single pooled database handle every stage depends on.
// It initializes the connection with bounded retries, probes liveness and
// transparently reconnects when the connection is lost.
type Manager struct {
	cfg        config.DatabaseConfig
	logger     *zap.Logger
	mu         sync.RWMutex
	db         *gorm.DB
	closed     bool
	reconnects atomic.Int64
}

// NewManager creates a Manager. Call Init before use.
func NewManager(cfg config.DatabaseConfig, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Init opens the connection, retrying up to initAttempts times with a fixed
// backoff. An error return is fatal: the process cannot serve requests.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initLocked()
}

func (m *Manager) initLocked() error {
	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		db, err := m.open()
		if err == nil {
			m.db = db
			m.closed = false
			m.logger.Info("database connection initialized",
				zap.String("mode", m.cfg.Mode),
				zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		m.logger.Error("database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", initAttempts),
			zap.Error(err))
		if attempt < initAttempts {
			time.Sleep(initBackoff)
		}
	}
	return fmt.Errorf("db: initialization failed after %d attempts: %w", initAttempts, lastErr)
}

func (m *Manager) open() (*gorm.DB, error) {
	switch m.cfg.Mode {
	case ModeMySQL:
		dsn := dbmysql.DSN(m.cfg.User, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.Name)
		return dbmysql.Open(dsn, m.cfg.MaxOpen, m.cfg.MaxIdle, m.cfg.MaxLife)
	case ModeSQLite:
		return dbsqlite.Open(m.cfg.SQLitePath)
	case ModeSQLiteMemory:
		return dbsqlite.OpenMemory()
	default:
		return nil, fmt.Errorf("db: unknown mode %q", m.cfg.Mode)
	}
}

// DB returns the current handle. Valid only after a successful Init.
func (m *Manager) DB() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// CheckLiveness issues a trivial round-trip query. A connection-lost
// condition triggers a transparent reconnect; any other error propagates
// unchanged.
func (m *Manager) CheckLiveness(ctx context.Context) error {
	db := m.DB()
	if db == nil {
		return fmt.Errorf("db: connection is not initialized")
	}
	err := db.WithContext(ctx).Exec("SELECT 1").Error
	if err == nil {
		return nil
	}
	if !IsConnLost(err) {
		return err
	}
	m.logger.Warn("database connection lost, reinitializing", zap.Error(err))
	return m.Reconnect()
}

// Reconnect closes the current handle and re-runs initialization with the
// same bounded retry policy as Init.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.reconnects.Add(1)
	return m.initLocked()
}

// Reconnects returns how many times the connection has been re-established.
func (m *Manager) Reconnects() int64 {
	return m.reconnects.Load()
}

// Close releases the underlying connection. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.db == nil || m.closed {
		return
	}
	if sqlDB, err := m.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			m.logger.Warn("closing database connection", zap.Error(err))
		}
	}
	m.closed = true
}

package testutil

import (
	"testing"

	"github.com/agathamc/regserver/cache"
	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// SetupTestDB creates an in-memory database behind a resilient gateway and
// migrates every table, including the normally externally-owned authme
// table. It requires no external services and is safe for parallel tests.
func SetupTestDB(t *testing.T) *db.Gateway {
	t.Helper()
	mgr := db.NewManager(config.DatabaseConfig{Mode: db.ModeSQLiteMemory}, zap.NewNop())
	require.NoError(t, mgr.Init(), "SetupTestDB: Init")
	t.Cleanup(mgr.Close)
	require.NoError(t, model.AutoMigrate(mgr.DB()), "SetupTestDB: AutoMigrate")
	require.NoError(t, mgr.DB().AutoMigrate(&model.AuthmeAccount{}), "SetupTestDB: authme")
	return db.NewGateway(mgr, zap.NewNop())
}

// SetupTestCache creates an in-process cache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{})
	require.NoError(t, err, "SetupTestCache")
	return c
}

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/agathamc/regserver/model"
	"github.com/agathamc/regserver/session"
	"github.com/agathamc/regserver/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*session.Service, func(model.Session)) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	svc := session.NewService(gw, testutil.SetupTestCache(t), zap.NewNop())
	insert := func(row model.Session) {
		require.NoError(t, gw.Manager().DB().Create(&row).Error)
	}
	return svc, insert
}

func TestValidateActiveSession(t *testing.T) {
	svc, insert := newService(t)
	insert(model.Session{
		Session:  "sess-1",
		Username: "Steve",
		Status:   1,
		Expiry:   time.Now().Add(time.Hour).Unix(),
	})

	name, err := svc.Validate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	// Second lookup is served from cache (still correct).
	name, err = svc.Validate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)
}

func TestValidateUnknownSession(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrInvalid)
}

func TestValidateDisabledSession(t *testing.T) {
	svc, insert := newService(t)
	insert(model.Session{
		Session:  "sess-off",
		Username: "Steve",
		Status:   0,
		Expiry:   time.Now().Add(time.Hour).Unix(),
	})
	_, err := svc.Validate(context.Background(), "sess-off")
	assert.ErrorIs(t, err, session.ErrInvalid)
}

func TestValidateExpiredSession(t *testing.T) {
	svc, insert := newService(t)
	insert(model.Session{
		Session:  "sess-old",
		Username: "Steve",
		Status:   1,
		Expiry:   time.Now().Add(-time.Minute).Unix(),
	})
	_, err := svc.Validate(context.Background(), "sess-old")
	assert.ErrorIs(t, err, session.ErrExpired)
}

func TestCleanupExpired(t *testing.T) {
	svc, insert := newService(t)
	insert(model.Session{Session: "live", Username: "a", Status: 1, Expiry: time.Now().Add(time.Hour).Unix()})
	insert(model.Session{Session: "dead1", Username: "b", Status: 1, Expiry: time.Now().Add(-time.Hour).Unix()})
	insert(model.Session{Session: "dead2", Username: "c", Status: 0, Expiry: time.Now().Add(-time.Minute).Unix()})

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = svc.Validate(context.Background(), "live")
	assert.NoError(t, err)
}

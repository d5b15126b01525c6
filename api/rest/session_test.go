package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/agathamc/regserver/api/rest"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"github.com/agathamc/regserver/session"
	"github.com/agathamc/regserver/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSessionRouter(t *testing.T) (*gin.Engine, *db.Gateway) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	svc := session.NewService(gw, testutil.SetupTestCache(t), nopLogger())
	h := rest.NewSessionHandler(svc, nopLogger())

	r := gin.New()
	r.POST("/validate", h.Validate)
	return r, gw
}

func seedSession(t *testing.T, gw *db.Gateway, sess, username string, status int, expiry int64) {
	t.Helper()
	require.NoError(t, gw.Do(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&model.Session{
			Session:  sess,
			Username: username,
			Status:   status,
			Expiry:   expiry,
		}).Error
	}))
}

func TestValidate_ActiveSession(t *testing.T) {
	r, gw := newSessionRouter(t)
	seedSession(t, gw, "sess-1", "Steve", 1, time.Now().Add(time.Hour).Unix())

	w := postJSON(r, "/validate", `{"sess":"sess-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"Steve"}`, w.Body.String())
}

func TestValidate_MissingParameter(t *testing.T) {
	r, _ := newSessionRouter(t)

	w := postJSON(r, "/validate", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status":"pass_failed","message":"Session parameter is missing"}`, w.Body.String())
}

func TestValidate_UnknownSession(t *testing.T) {
	r, _ := newSessionRouter(t)

	w := postJSON(r, "/validate", `{"sess":"nope"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"pass_failed"}`, w.Body.String())
}

func TestValidate_DisabledSession(t *testing.T) {
	r, gw := newSessionRouter(t)
	seedSession(t, gw, "sess-off", "Steve", 0, time.Now().Add(time.Hour).Unix())

	w := postJSON(r, "/validate", `{"sess":"sess-off"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"pass_failed"}`, w.Body.String())
}

func TestValidate_ExpiredSession(t *testing.T) {
	r, gw := newSessionRouter(t)
	seedSession(t, gw, "sess-old", "Steve", 1, time.Now().Add(-time.Hour).Unix())

	w := postJSON(r, "/validate", `{"sess":"sess-old"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"pass_failed","message":"Session has expired"}`, w.Body.String())
}

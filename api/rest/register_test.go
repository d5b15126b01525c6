package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agathamc/regserver/api/rest"
	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"github.com/agathamc/regserver/mojang"
	"github.com/agathamc/regserver/regflow"
	"github.com/agathamc/regserver/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getReq(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// authChainServer fakes every endpoint of the account-ownership chain on one
// listener and hands back the profile name it was built with.
func authChainServer(t *testing.T, profileName string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"ms-token"}`))
	})
	mux.HandleFunc("/xbox", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Token":"xbl-token","DisplayClaims":{"xui":[{"uhs":"hash-1"}]}}`))
	})
	mux.HandleFunc("/xsts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Token":"xsts-token"}`))
	})
	mux.HandleFunc("/mc/authentication/login_with_xbox", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"mc-token"}`))
	})
	mux.HandleFunc("/mc/minecraft/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"` + profileName + `","id":"uuid-1"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func chainConfig(srv *httptest.Server) config.OAuthConfig {
	return config.OAuthConfig{
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		RedirectURI:      "https://reg.example.com/callback",
		LiveTokenURL:     srv.URL + "/token",
		XboxAuthURL:      srv.URL + "/xbox",
		XSTSAuthorizeURL: srv.URL + "/xsts",
		MinecraftBaseURL: srv.URL + "/mc",
	}
}

func newRegisterRouter(t *testing.T, chainSrv *httptest.Server) (*gin.Engine, *db.Gateway, *regflow.Store) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	store := regflow.NewStore(gw, config.DatabaseConfig{})
	svc := regflow.NewService(store, nopLogger())
	chain := mojang.NewClient(chainConfig(chainSrv), nil, nopLogger())
	h := rest.NewRegisterHandler(chain, svc, nil, nil, nopLogger())

	r := gin.New()
	r.POST("/finish-mojang", h.FinishMojang)
	return r, gw, store
}

func TestFinishMojang_NewPlayerRedirectsToIDVerify(t *testing.T) {
	srv := authChainServer(t, "Steve")
	r, _, store := newRegisterRouter(t, srv)

	w := postJSON(r, "/finish-mojang", `{"code":"one-time-code"}`)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/idverify.html?id=Steve", w.Header().Get("Location"))

	flow, err := store.FindByName(context.Background(), "Steve")
	require.NoError(t, err)
	require.NotNil(t, flow)
	assert.Equal(t, model.StatusNew, flow.Status)
}

func TestFinishMojang_ExistingAccountRedirectsAlready(t *testing.T) {
	srv := authChainServer(t, "Steve")
	r, gw, store := newRegisterRouter(t, srv)

	require.NoError(t, gw.Do(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&model.AuthmeAccount{Username: "steve", Realname: "Steve"}).Error
	}))

	w := postJSON(r, "/finish-mojang", `{"code":"one-time-code"}`)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/mojang_already.html", w.Header().Get("Location"))

	flow, err := store.FindByName(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Nil(t, flow, "no flow row for an already-registered account")
}

func TestFinishMojang_PendingFlowShowsConfirmPage(t *testing.T) {
	srv := authChainServer(t, "Steve")
	r, _, store := newRegisterRouter(t, srv)

	require.NoError(t, store.Create(context.Background(), "Steve"))

	w := postJSON(r, "/finish-mojang", `{"code":"second-code"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "请直接点击确认")
}

func TestFinishMojang_ConfirmedFlowRedirectsAlready(t *testing.T) {
	srv := authChainServer(t, "Steve")
	r, gw, store := newRegisterRouter(t, srv)

	require.NoError(t, store.Create(context.Background(), "Steve"))
	require.NoError(t, gw.Do(context.Background(), func(tx *gorm.DB) error {
		return tx.Table("regflow").Where("name = ?", "Steve").
			Update("status", int(model.StatusConfirmed)).Error
	}))

	w := postJSON(r, "/finish-mojang", `{"code":"second-code"}`)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/mojang_already.html", w.Header().Get("Location"))
}

func TestFinishMojang_ChainFailureRedirectsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	r, _, store := newRegisterRouter(t, srv)

	w := postJSON(r, "/finish-mojang", `{"code":"expired-code"}`)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/mojang_error.html", w.Header().Get("Location"))

	flows, err := store.ListFlows(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestFinishMojang_MissingCode(t *testing.T) {
	srv := authChainServer(t, "Steve")
	r, _, _ := newRegisterRouter(t, srv)

	w := postJSON(r, "/finish-mojang", `{}`)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/mojang_error.html", w.Header().Get("Location"))
}

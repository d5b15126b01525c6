package mojang_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/mojang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChain stands in for all three upstream identity providers.
type fakeChain struct {
	mux     *http.ServeMux
	hits    map[string]int
	fail    map[string]int // path → status to return instead of 200
	profile map[string]string
}

func newFakeChain(t *testing.T) (*fakeChain, *httptest.Server) {
	t.Helper()
	f := &fakeChain{
		mux:     http.NewServeMux(),
		hits:    map[string]int{},
		fail:    map[string]int{},
		profile: map[string]string{"name": "Steve", "id": "uuid-1"},
	}

	reply := func(path string, build func(r *http.Request) (interface{}, error)) {
		f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			f.hits[path]++
			if status, ok := f.fail[path]; ok {
				w.WriteHeader(status)
				return
			}
			body, err := build(r)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(body)
		})
	}

	reply("/oauth20_token.srf", func(r *http.Request) (interface{}, error) {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		if r.PostFormValue("grant_type") != "authorization_code" {
			return nil, fmt.Errorf("bad grant type")
		}
		if r.PostFormValue("code") == "" {
			return nil, fmt.Errorf("missing code")
		}
		return map[string]string{"access_token": "ms-token"}, nil
	})
	reply("/user/authenticate", func(r *http.Request) (interface{}, error) {
		var req struct {
			Properties struct {
				RpsTicket string `json:"RpsTicket"`
			} `json:"Properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		if req.Properties.RpsTicket != "d=ms-token" {
			return nil, fmt.Errorf("bad rps ticket")
		}
		return map[string]interface{}{
			"Token": "xbl-token",
			"DisplayClaims": map[string]interface{}{
				"xui": []map[string]string{{"uhs": "uhs-1"}},
			},
		}, nil
	})
	reply("/xsts/authorize", func(r *http.Request) (interface{}, error) {
		var req struct {
			Properties struct {
				UserTokens []string `json:"UserTokens"`
			} `json:"Properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		if len(req.Properties.UserTokens) != 1 || req.Properties.UserTokens[0] != "xbl-token" {
			return nil, fmt.Errorf("bad user tokens")
		}
		return map[string]string{"Token": "xsts-token"}, nil
	})
	reply("/authentication/login_with_xbox", func(r *http.Request) (interface{}, error) {
		var req struct {
			IdentityToken string `json:"identityToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		if req.IdentityToken != "XBL3.0 x=uhs-1;xsts-token" {
			return nil, fmt.Errorf("bad identity token")
		}
		return map[string]string{"access_token": "mc-token"}, nil
	})
	f.mux.HandleFunc("/minecraft/profile", func(w http.ResponseWriter, r *http.Request) {
		f.hits["/minecraft/profile"]++
		if status, ok := f.fail["/minecraft/profile"]; ok {
			w.WriteHeader(status)
			return
		}
		if r.Header.Get("Authorization") != "Bearer mc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(f.profile)
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func chainConfig(base string) config.OAuthConfig {
	return config.OAuthConfig{
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		RedirectURI:      "https://register.example.org/finish_mojang.html",
		LiveTokenURL:     base + "/oauth20_token.srf",
		XboxAuthURL:      base + "/user/authenticate",
		XSTSAuthorizeURL: base + "/xsts/authorize",
		MinecraftBaseURL: base,
	}
}

func TestAuthenticateFullChain(t *testing.T) {
	f, srv := newFakeChain(t)
	c := mojang.NewClient(chainConfig(srv.URL), srv.Client(), zap.NewNop())

	profile, err := c.Authenticate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Steve", profile.Name)
	assert.Equal(t, "uuid-1", profile.ID)

	for _, path := range []string{
		"/oauth20_token.srf",
		"/user/authenticate",
		"/xsts/authorize",
		"/authentication/login_with_xbox",
		"/minecraft/profile",
	} {
		assert.Equal(t, 1, f.hits[path], "each step runs exactly once: %s", path)
	}
}

func TestAuthenticateAbortsOnStepFailure(t *testing.T) {
	cases := []struct {
		failPath string
		after    []string // steps that must never run
	}{
		{"/oauth20_token.srf", []string{"/user/authenticate", "/xsts/authorize", "/authentication/login_with_xbox", "/minecraft/profile"}},
		{"/user/authenticate", []string{"/xsts/authorize", "/authentication/login_with_xbox", "/minecraft/profile"}},
		{"/xsts/authorize", []string{"/authentication/login_with_xbox", "/minecraft/profile"}},
		{"/authentication/login_with_xbox", []string{"/minecraft/profile"}},
		{"/minecraft/profile", nil},
	}
	for _, tc := range cases {
		t.Run(tc.failPath, func(t *testing.T) {
			f, srv := newFakeChain(t)
			f.fail[tc.failPath] = http.StatusUnauthorized
			c := mojang.NewClient(chainConfig(srv.URL), srv.Client(), zap.NewNop())

			_, err := c.Authenticate(context.Background(), "abc")
			require.Error(t, err)
			assert.Equal(t, 1, f.hits[tc.failPath], "failing step is attempted exactly once")
			for _, path := range tc.after {
				assert.Zero(t, f.hits[path], "later step must not run: %s", path)
			}
		})
	}
}

func TestAuthenticateRejectsEmptyProfileName(t *testing.T) {
	f, srv := newFakeChain(t)
	f.profile = map[string]string{"name": "", "id": "uuid-1"}
	c := mojang.NewClient(chainConfig(srv.URL), srv.Client(), zap.NewNop())

	_, err := c.Authenticate(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account name")
}

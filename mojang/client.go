package mojang

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agathamc/regserver/config"
	"go.uber.org/zap"
)

// Profile is the verified Minecraft account identity.
type Profile struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Client performs the account-ownership chain: one-time authorization code →
// Microsoft access token → Xbox Live token → XSTS token → Minecraft access
// token → profile. Every step is gated on an HTTP 200; any failure aborts
// the chain with no retry, since a failed exchange almost always means an
// expired or reused one-time code.
type Client struct {
	cfg    config.OAuthConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Client. A nil httpClient gets a 30s-timeout default.
func NewClient(cfg config.OAuthConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Authenticate exchanges the authorization code for a verified profile.
func (c *Client) Authenticate(ctx context.Context, code string) (*Profile, error) {
	accessToken, err := c.exchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	xboxToken, uhs, err := c.xboxAuthenticate(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("xbox live authentication: %w", err)
	}
	xstsToken, err := c.xstsAuthorize(ctx, xboxToken)
	if err != nil {
		return nil, fmt.Errorf("xsts authorization: %w", err)
	}
	mcToken, err := c.minecraftLogin(ctx, uhs, xstsToken)
	if err != nil {
		return nil, fmt.Errorf("minecraft authentication: %w", err)
	}
	profile, err := c.fetchProfile(ctx, mcToken)
	if err != nil {
		return nil, fmt.Errorf("minecraft profile: %w", err)
	}
	return profile, nil
}

func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.cfg.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LiveTokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.send(req, &body); err != nil {
		// The secret and the one-time code are never logged; lengths are
		// enough to debug malformed requests.
		c.logger.Error("token exchange failed",
			zap.String("client_id", c.cfg.ClientID),
			zap.Int("client_secret_length", len(c.cfg.ClientSecret)),
			zap.Int("code_length", len(code)),
			zap.String("redirect_uri", c.cfg.RedirectURI),
			zap.Error(err))
		return "", err
	}
	return body.AccessToken, nil
}

func (c *Client) xboxAuthenticate(ctx context.Context, accessToken string) (token, uhs string, err error) {
	payload := map[string]interface{}{
		"Properties": map[string]string{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + accessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}
	var body struct {
		Token         string `json:"Token"`
		DisplayClaims struct {
			XUI []struct {
				UHS string `json:"uhs"`
			} `json:"xui"`
		} `json:"DisplayClaims"`
	}
	if err := c.postJSON(ctx, c.cfg.XboxAuthURL, payload, &body); err != nil {
		return "", "", err
	}
	if len(body.DisplayClaims.XUI) == 0 {
		return "", "", fmt.Errorf("response is missing display claims")
	}
	return body.Token, body.DisplayClaims.XUI[0].UHS, nil
}

func (c *Client) xstsAuthorize(ctx context.Context, xboxToken string) (string, error) {
	payload := map[string]interface{}{
		"Properties": map[string]interface{}{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{xboxToken},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}
	var body struct {
		Token string `json:"Token"`
	}
	if err := c.postJSON(ctx, c.cfg.XSTSAuthorizeURL, payload, &body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func (c *Client) minecraftLogin(ctx context.Context, uhs, xstsToken string) (string, error) {
	payload := map[string]interface{}{
		"identityToken":       fmt.Sprintf("XBL3.0 x=%s;%s", uhs, xstsToken),
		"ensureLegacyEnabled": true,
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.postJSON(ctx, c.cfg.MinecraftBaseURL+"/authentication/login_with_xbox", payload, &body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

func (c *Client) fetchProfile(ctx context.Context, mcToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.MinecraftBaseURL+"/minecraft/profile", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+mcToken)

	profile := &Profile{}
	if err := c.send(req, profile); err != nil {
		return nil, err
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("profile has no account name")
	}
	return profile, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	IDVerify IDVerifyConfig `mapstructure:"idverify"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// PagesDir is the directory with the static registration pages
	// (finish_mojang.html, idverify.html, mojang_already.html, ...).
	PagesDir string `mapstructure:"pages_dir"`
}

type DatabaseConfig struct {
	Mode string `mapstructure:"mode"` // mysql | sqlite | sqlite_memory

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	SQLitePath string `mapstructure:"sqlite_path"`

	MaxOpen int           `mapstructure:"max_open"`
	MaxIdle int           `mapstructure:"max_idle"`
	MaxLife time.Duration `mapstructure:"max_life"`

	// FlowSchema and AuthmeSchema qualify the regflow/idverifyhis and
	// authme tables when they live in databases other than the one the
	// connection was opened against. Empty means unqualified.
	FlowSchema   string `mapstructure:"flow_schema"`
	AuthmeSchema string `mapstructure:"authme_schema"`
}

// OAuthConfig holds the Microsoft identity platform client credentials and
// the endpoint of every hop in the account-ownership chain. The endpoint
// fields exist so tests can point the client at local servers; production
// deployments leave them at the defaults.
type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`

	LiveTokenURL     string `mapstructure:"live_token_url"`
	XboxAuthURL      string `mapstructure:"xbox_auth_url"`
	XSTSAuthorizeURL string `mapstructure:"xsts_authorize_url"`
	MinecraftBaseURL string `mapstructure:"minecraft_base_url"`
}

type IDVerifyConfig struct {
	Host    string `mapstructure:"host"`
	Path    string `mapstructure:"path"`
	AppCode string `mapstructure:"app_code"`
	// ReturnURL and NotifyURL are the externally reachable pages the KYC
	// provider hands the user / its completion callback to. The registrant
	// name is appended as a query parameter.
	ReturnURL string `mapstructure:"return_url"`
	NotifyURL string `mapstructure:"notify_url"`
}

type ChatConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"api_key"`
	AppID  string `mapstructure:"app_id"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type SecurityConfig struct {
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	AdminAllowIPs  []string `mapstructure:"admin_allow_ips"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.pages_dir", "./public")
	v.SetDefault("database.mode", "mysql")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("oauth.live_token_url", "https://login.live.com/oauth20_token.srf")
	v.SetDefault("oauth.xbox_auth_url", "https://user.auth.xboxlive.com/user/authenticate")
	v.SetDefault("oauth.xsts_authorize_url", "https://xsts.auth.xboxlive.com/xsts/authorize")
	v.SetDefault("oauth.minecraft_base_url", "https://api.minecraftservices.com")
	v.SetDefault("idverify.host", "https://zimfaceid1.market.alicloudapi.com")
	v.SetDefault("idverify.path", "/comms/zfi/init")
	v.SetDefault("chat.host", "https://dashscope.aliyuncs.com")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

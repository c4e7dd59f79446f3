package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Session     SessionConfig   `mapstructure:"session"`
	Security    SecurityConfig  `mapstructure:"security"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	OAuth       OAuthConfig     `mapstructure:"oauth"`
	Webhooks    WebhooksConfig  `mapstructure:"webhooks"`
	Worker      WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	StateTTL   time.Duration `mapstructure:"state_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	AuthPerMinute  int `mapstructure:"auth_per_minute"`
	OAuthPerMinute int `mapstructure:"oauth_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type OAuthConfig struct {
	DashboardURL string         `mapstructure:"dashboard_url"`
	HTTPTimeout  time.Duration  `mapstructure:"http_timeout"`
	Facebook     ProviderConfig `mapstructure:"facebook"`
	Instagram    ProviderConfig `mapstructure:"instagram"`
	TikTok       ProviderConfig `mapstructure:"tiktok"`
}

// ProviderConfig holds one platform's OAuth client. Endpoint URLs default to the
// platform's production endpoints.
type ProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	ProfileURL   string   `mapstructure:"profile_url"`
}

// Configured reports whether the client credentials needed to start a flow are present.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}

type WebhooksConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	AppSecret   string `mapstructure:"app_secret"`
}

type WorkerConfig struct {
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "file:./data/postdeck.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.session_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.state_ttl", 10*time.Minute)
	v.SetDefault("jwt.issuer", "postdeck")

	v.SetDefault("session.cookie_name", "auth-token")
	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("rate_limit.auth_per_minute", 30)
	v.SetDefault("rate_limit.oauth_per_minute", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("oauth.dashboard_url", "http://localhost:3000/dashboard/channels")
	v.SetDefault("oauth.http_timeout", 15*time.Second)

	v.SetDefault("oauth.facebook.client_id", "")
	v.SetDefault("oauth.facebook.client_secret", "")
	v.SetDefault("oauth.facebook.redirect_uri", "")
	v.SetDefault("oauth.facebook.scopes", []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"})
	v.SetDefault("oauth.facebook.auth_url", "https://www.facebook.com/v19.0/dialog/oauth")
	v.SetDefault("oauth.facebook.token_url", "https://graph.facebook.com/v19.0/oauth/access_token")
	v.SetDefault("oauth.facebook.profile_url", "https://graph.facebook.com/v19.0/me?fields=id,name")

	v.SetDefault("oauth.instagram.client_id", "")
	v.SetDefault("oauth.instagram.client_secret", "")
	v.SetDefault("oauth.instagram.redirect_uri", "")
	v.SetDefault("oauth.instagram.scopes", []string{"instagram_business_basic", "instagram_business_content_publish"})
	v.SetDefault("oauth.instagram.auth_url", "https://www.instagram.com/oauth/authorize")
	v.SetDefault("oauth.instagram.token_url", "https://api.instagram.com/oauth/access_token")
	v.SetDefault("oauth.instagram.profile_url", "https://graph.instagram.com/me?fields=user_id,username,account_type")

	v.SetDefault("oauth.tiktok.client_id", "")
	v.SetDefault("oauth.tiktok.client_secret", "")
	v.SetDefault("oauth.tiktok.redirect_uri", "")
	v.SetDefault("oauth.tiktok.scopes", []string{"user.info.basic", "video.publish"})
	v.SetDefault("oauth.tiktok.auth_url", "https://www.tiktok.com/v2/auth/authorize/")
	v.SetDefault("oauth.tiktok.token_url", "https://open.tiktokapis.com/v2/oauth/token/")
	v.SetDefault("oauth.tiktok.profile_url", "https://open.tiktokapis.com/v2/user/info/?fields=open_id,display_name,avatar_url")

	v.SetDefault("webhooks.verify_token", "")
	v.SetDefault("webhooks.app_secret", "")

	v.SetDefault("worker.purge_interval", time.Hour)
}

// Load reads the YAML file at path (skipped when path is empty) and applies
// POSTDECK_* environment overrides, e.g. POSTDECK_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("postdeck")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if c.IsProduction() && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 bytes in production"))
	}
	if c.JWT.SessionTTL <= 0 {
		errs = append(errs, errors.New("jwt.session_ttl must be positive"))
	}
	if c.JWT.StateTTL <= 0 {
		errs = append(errs, errors.New("jwt.state_ttl must be positive"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost must be between 4 and 31, got %d", c.Security.BcryptCost))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	if c.Worker.PurgeInterval <= 0 {
		errs = append(errs, errors.New("worker.purge_interval must be positive"))
	}
	if c.OAuth.DashboardURL == "" {
		errs = append(errs, errors.New("oauth.dashboard_url is required"))
	}

	return errors.Join(errs...)
}

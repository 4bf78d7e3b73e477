package config

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mailblast/mailblast/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Send      SendConfig      `mapstructure:"send"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Google    GoogleConfig    `mapstructure:"google"`
	Microsoft MicrosoftConfig `mapstructure:"microsoft"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// BaseURL is the externally reachable origin, used for CORS and default redirect URIs.
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TrustedProxies lists the addresses or CIDR ranges whose X-Forwarded-For
	// header is believed. Empty means the peer address is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	// MaxUploadBytes caps the size of an uploaded recipient sheet.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host range.
func (c ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig bounds how often a session may start a send batch.
// Counters live in Redis; the limit is not enforced without it.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// SessionConfig controls how user sessions are identified and where their state lives
type SessionConfig struct {
	// Store is "memory" (process lifetime) or "redis" (expires with the session TTL).
	Store string `mapstructure:"store"`
	// Secret signs the session cookie. Required.
	Secret     string        `mapstructure:"secret"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
	SameSite   string        `mapstructure:"same_site"`
}

// SendConfig holds settings for provider calls
type SendConfig struct {
	// RequestTimeout bounds every token-endpoint and send call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GoogleConfig holds Google OAuth client configuration
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	// AuthURL and TokenURL override the default Google endpoints.
	AuthURL  string `mapstructure:"auth_url"`
	TokenURL string `mapstructure:"token_url"`
}

// Enabled reports whether any Google setting was supplied.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" || c.ClientSecret != "" || c.RedirectURL != ""
}

// Validate returns a ConfigError naming the first missing field.
func (c GoogleConfig) Validate() error {
	switch {
	case c.ClientID == "":
		return &model.ConfigError{Provider: model.ProviderGoogle, Field: "google.client_id"}
	case c.ClientSecret == "":
		return &model.ConfigError{Provider: model.ProviderGoogle, Field: "google.client_secret"}
	case c.RedirectURL == "":
		return &model.ConfigError{Provider: model.ProviderGoogle, Field: "google.redirect_url"}
	}
	return nil
}

// MicrosoftConfig holds Microsoft identity platform client configuration
type MicrosoftConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// Tenant is the authority segment: a tenant ID, "common", "organizations" or "consumers".
	Tenant      string `mapstructure:"tenant"`
	RedirectURL string `mapstructure:"redirect_url"`
	// GraphURL overrides the Microsoft Graph base URL.
	GraphURL string `mapstructure:"graph_url"`
	// AuthorityURL overrides https://login.microsoftonline.com.
	AuthorityURL string `mapstructure:"authority_url"`
}

// Enabled reports whether any Microsoft setting was supplied.
func (c MicrosoftConfig) Enabled() bool {
	return c.ClientID != "" || c.ClientSecret != "" || c.RedirectURL != ""
}

// Validate returns a ConfigError naming the first missing field.
func (c MicrosoftConfig) Validate() error {
	switch {
	case c.ClientID == "":
		return &model.ConfigError{Provider: model.ProviderMicrosoft, Field: "microsoft.client_id"}
	case c.ClientSecret == "":
		return &model.ConfigError{Provider: model.ProviderMicrosoft, Field: "microsoft.client_secret"}
	case c.Tenant == "":
		return &model.ConfigError{Provider: model.ProviderMicrosoft, Field: "microsoft.tenant"}
	case c.RedirectURL == "":
		return &model.ConfigError{Provider: model.ProviderMicrosoft, Field: "microsoft.redirect_url"}
	}
	return nil
}

// Validate checks settings every deployment needs. Provider sections are
// validated separately so a single misconfigured provider does not block the other.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("config: session.secret is required"))
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: session.store must be memory or redis, got %q", c.Session.Store))
	}
	if c.Send.RequestTimeout <= 0 {
		errs = append(errs, errors.New("config: send.request_timeout must be positive"))
	}
	// Credentialed CORS responses must name the origin.
	if slices.Contains(c.Server.AllowedOrigins, "*") {
		errs = append(errs, errors.New(`config: server.allowed_origins cannot contain "*"; list each origin`))
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration using the supplied viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mailblast")

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("MAILBLAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Session defaults
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.cookie_name", "mailblast_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.same_site", "lax")

	// Send defaults
	v.SetDefault("send.request_timeout", "30s")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", "1m")

	// Provider defaults. Keys are registered so AutomaticEnv can populate them.
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "")
	v.SetDefault("google.auth_url", "")
	v.SetDefault("google.token_url", "")

	v.SetDefault("microsoft.client_id", "")
	v.SetDefault("microsoft.client_secret", "")
	v.SetDefault("microsoft.tenant", "common")
	v.SetDefault("microsoft.redirect_url", "")
	v.SetDefault("microsoft.graph_url", "")
	v.SetDefault("microsoft.authority_url", "")
}

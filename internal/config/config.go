package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	API         APIConfig     `toml:"api"`
	Auth        AuthConfig    `toml:"auth"`
	Session     SessionConfig `toml:"session"`
	Report      ReportConfig  `toml:"report"`
	Breaker     BreakerConfig `toml:"breaker"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// PublicMetrics serves /metrics without a session, for scrapers on a
	// private network.
	PublicMetrics bool `toml:"public_metrics"`
}

// APIConfig points at the upstream quant scoring service.
type APIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses the upstream timeout, falling back to 30s.
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds the access gate settings.
// Password is a shared speed-bump secret, not a credential store.
type AuthConfig struct {
	Password     string `toml:"password"`
	CookieName   string `toml:"cookie_name"`
	SecureCookie bool   `toml:"secure_cookie"` // set when served over TLS
}

// SessionConfig selects where authorization markers are kept.
type SessionConfig struct {
	Backend string      `toml:"backend"` // "memory" or "redis"
	TTL     string      `toml:"ttl"`
	Redis   RedisConfig `toml:"redis"`
}

// GetTTL parses the session TTL, falling back to 12h.
func (c *SessionConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// RedisConfig contains connection settings for the redis session backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// ReportConfig tunes the AI strategy report proxy.
type ReportConfig struct {
	CacheTTL      string `toml:"cache_ttl"` // "0s" disables caching
	CacheEntries  int    `toml:"cache_entries"`
	RatePerMinute int    `toml:"rate_per_minute"` // 0 disables throttling
}

// GetCacheTTL parses the report cache TTL. Invalid values disable the cache.
func (c *ReportConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// BreakerConfig controls the circuit breaker around upstream calls.
type BreakerConfig struct {
	MaxFailures int    `toml:"max_failures"`
	OpenTimeout string `toml:"open_timeout"`
}

// GetOpenTimeout parses how long the breaker stays open, falling back to 30s.
func (c *BreakerConfig) GetOpenTimeout() time.Duration {
	d, err := time.ParseDuration(c.OpenTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// IsDevMode reports whether the portal runs with environment = "dev".
func (c *Config) IsDevMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "dev")
}

// BaseURL returns the portal's own base URL.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// Validate returns a list of human-readable configuration issues.
// An empty list means the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if strings.TrimSpace(c.API.URL) == "" {
		issues = append(issues, "api.url is required (ALPHA_API_URL)")
	} else if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("api.url must be an http(s) URL, got %q", c.API.URL))
	}

	if c.Auth.Password == "" {
		issues = append(issues, "auth.password is required (ALPHA_AUTH_PASSWORD)")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			issues = append(issues, "session.redis.addr is required when session.backend = \"redis\"")
		}
	default:
		issues = append(issues, fmt.Sprintf("session.backend must be \"memory\" or \"redis\", got %q", c.Session.Backend))
	}

	return issues
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies ALPHA_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ALPHA_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("ALPHA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ALPHA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if public := os.Getenv("ALPHA_SERVER_PUBLIC_METRICS"); public != "" {
		if b, err := strconv.ParseBool(public); err == nil {
			config.Server.PublicMetrics = b
		}
	}
	if apiURL := os.Getenv("ALPHA_API_URL"); apiURL != "" {
		config.API.URL = strings.TrimRight(apiURL, "/")
	}
	if timeout := os.Getenv("ALPHA_API_TIMEOUT"); timeout != "" {
		config.API.Timeout = timeout
	}
	if password := os.Getenv("ALPHA_AUTH_PASSWORD"); password != "" {
		config.Auth.Password = password
	}
	if secure := os.Getenv("ALPHA_AUTH_SECURE_COOKIE"); secure != "" {
		if b, err := strconv.ParseBool(secure); err == nil {
			config.Auth.SecureCookie = b
		}
	}
	if backend := os.Getenv("ALPHA_SESSION_BACKEND"); backend != "" {
		config.Session.Backend = backend
	}
	if addr := os.Getenv("ALPHA_REDIS_ADDR"); addr != "" {
		config.Session.Redis.Addr = addr
	}
	if pw := os.Getenv("ALPHA_REDIS_PASSWORD"); pw != "" {
		config.Session.Redis.Password = pw
	}
	if ttl := os.Getenv("ALPHA_REPORT_CACHE_TTL"); ttl != "" {
		config.Report.CacheTTL = ttl
	}
	if level := os.Getenv("ALPHA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if outputs := os.Getenv("ALPHA_LOG_OUTPUTS"); outputs != "" {
		var list []string
		for _, o := range strings.Split(outputs, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		config.Logging.Outputs = list
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

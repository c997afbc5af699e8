package config

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 4251,
			Host: "localhost",
		},
		API: APIConfig{
			URL:     "http://localhost:8000/api",
			Timeout: "60s",
		},
		Auth: AuthConfig{
			CookieName: "alpha_session",
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     "12h",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Report: ReportConfig{
			CacheTTL:      "0s",
			CacheEntries:  256,
			RatePerMinute: 30,
		},
		Breaker: BreakerConfig{
			MaxFailures: 0,
			OpenTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console"},
			FilePath:   "logs/alpha-matrix.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Media struct {
		ServerURL  string `yaml:"server_url"`
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"media"`

	Token struct {
		// URL of the remote token issuer. When empty, tokens are minted
		// locally with the configured secret.
		URL            string        `yaml:"url"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"token"`

	Presence struct {
		// Backend is "http" or "redis".
		Backend string        `yaml:"backend"`
		URL     string        `yaml:"url"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"presence"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Backup struct {
		Enabled   bool          `yaml:"enabled"`
		Dir       string        `yaml:"dir"`
		Interval  time.Duration `yaml:"interval"`
		Retention int           `yaml:"retention"`
	} `yaml:"backup"`

	Identity struct {
		UserID      string `yaml:"user_id"`
		DisplayName string `yaml:"display_name"`
	} `yaml:"identity"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Media.ServerURL == "" {
		return fmt.Errorf("media.server_url must not be empty")
	}

	if c.Token.URL == "" && c.Token.JWTSecret == "" {
		return fmt.Errorf("token.jwt_secret must not be empty when token.url is unset")
	}
	if c.Token.AccessTokenTTL <= 0 {
		return fmt.Errorf("token.access_token_ttl must be > 0")
	}
	if c.Token.RequestTimeout <= 0 {
		return fmt.Errorf("token.request_timeout must be > 0")
	}

	switch c.Presence.Backend {
	case "http":
		if c.Presence.URL == "" {
			return fmt.Errorf("presence.url must not be empty when presence.backend=http")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when presence.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when presence.backend=redis")
		}
	default:
		return fmt.Errorf("presence.backend must be one of: http, redis")
	}
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("presence.ttl must be > 0")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}

	if c.Backup.Enabled {
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup.dir must not be empty when backups are enabled")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backups are enabled")
		}
		if c.Backup.Retention <= 0 {
			return fmt.Errorf("backup.retention must be > 0 when backups are enabled")
		}
	}

	if c.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id must not be empty")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	// .env is optional and only matters for local development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = "127.0.0.1:7350"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Media.ServerURL = "ws://localhost:7880"

	cfg.Token.JWTSecret = "change-me-in-production"
	cfg.Token.AccessTokenTTL = 10 * time.Minute
	cfg.Token.RequestTimeout = 10 * time.Second

	cfg.Presence.Backend = "redis"
	cfg.Presence.TTL = 60 * time.Second

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Storage.Path = "harmony.db"

	cfg.Backup.Enabled = false
	cfg.Backup.Dir = "backups"
	cfg.Backup.Interval = 6 * time.Hour
	cfg.Backup.Retention = 10

	cfg.Identity.UserID = "local-user"
	cfg.Identity.DisplayName = "Local User"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerSecond = 10
	cfg.RateLimiting.Burst = 20

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("HARMONY_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("HARMONY_MEDIA_SERVER_URL"); url != "" {
		c.Media.ServerURL = url
	}
	if url := os.Getenv("HARMONY_TOKEN_URL"); url != "" {
		c.Token.URL = url
	}
	if secret := os.Getenv("HARMONY_JWT_SECRET"); secret != "" {
		c.Token.JWTSecret = secret
	}
	if addr := os.Getenv("HARMONY_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if path := os.Getenv("HARMONY_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if id := os.Getenv("HARMONY_USER_ID"); id != "" {
		c.Identity.UserID = id
	}
	if name := os.Getenv("HARMONY_DISPLAY_NAME"); name != "" {
		c.Identity.DisplayName = name
	}
	if level := os.Getenv("HARMONY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Backend    BackendConfig
	LocalStore LocalStoreConfig
	Redis      RedisConfig
	Sync       SyncConfig
	Scan       ScanConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSLANE_APP_ENV" required:"true"`
	Port         string `envconfig:"POSLANE_APP_PORT" default:"7070"`
	LogLevel     string `envconfig:"POSLANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POSLANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type BackendConfig struct {
	BaseURL  string        `envconfig:"POSLANE_BACKEND_BASE_URL" required:"true"`
	APIToken string        `envconfig:"POSLANE_BACKEND_API_TOKEN" required:"true"`
	Timeout  time.Duration `envconfig:"POSLANE_BACKEND_TIMEOUT" default:"10s"`

	// StoreID scopes the lane to the physical store it sits in.
	StoreID string `envconfig:"POSLANE_STORE_ID" required:"true"`

	// Username overrides the identity derived from the API token claims.
	Username string `envconfig:"POSLANE_USERNAME"`
}

type LocalStoreConfig struct {
	Path string `envconfig:"POSLANE_LOCAL_STORE_PATH" default:"poslane.db"`
}

type RedisConfig struct {
	// URL is optional; when empty the terminal falls back to the in-memory
	// cart cache.
	URL          string        `envconfig:"POSLANE_REDIS_URL"`
	Address      string        `envconfig:"POSLANE_REDIS_ADDR"`
	Password     string        `envconfig:"POSLANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSLANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSLANE_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"POSLANE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"POSLANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSLANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSLANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis cache backend is configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type SyncConfig struct {
	Interval time.Duration `envconfig:"POSLANE_SYNC_INTERVAL" default:"30s"`
}

type ScanConfig struct {
	DuplicateWindow time.Duration `envconfig:"POSLANE_SCAN_DUPLICATE_WINDOW" default:"2s"`
	MinGap          time.Duration `envconfig:"POSLANE_SCAN_MIN_GAP" default:"500ms"`
	SettleHold      time.Duration `envconfig:"POSLANE_SCAN_SETTLE_HOLD" default:"300ms"`
	QueueRetention  time.Duration `envconfig:"POSLANE_SCAN_QUEUE_RETENTION" default:"5s"`
}

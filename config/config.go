package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Identity verification modes.
const (
	IdentityModeStrict = "strict"
	IdentityModeBypass = "bypass"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Identity IdentityConfig `mapstructure:"identity"`
	Game     GameConfig     `mapstructure:"game"`
	Market   MarketConfig   `mapstructure:"market"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminAllow lists IPs or CIDR ranges allowed to reach /api/admin. Empty allows all.
	AdminAllow []string `mapstructure:"admin_allow"`
}

type LogConfig struct {
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Mode        string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath  string        `mapstructure:"sqlite_path"`
	DSN         string        `mapstructure:"dsn"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLife     time.Duration `mapstructure:"max_life"`
	ConnectWait time.Duration `mapstructure:"connect_wait"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the CORS origins that are permitted.
	// An empty slice allows all origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IdentityConfig is handed to identity.NewVerifier. Bypass mode trusts the
// vk_user_id parameter without a signature and falls back to FallbackIdentityID
// when the header is absent; it must never be used in production.
type IdentityConfig struct {
	Mode               string `mapstructure:"mode"`
	AppSecret          string `mapstructure:"app_secret"`
	FallbackIdentityID int64  `mapstructure:"fallback_identity_id"`
}

type GameConfig struct {
	PlayerCacheSize   int           `mapstructure:"player_cache_size"`
	PlayerCacheTTL    time.Duration `mapstructure:"player_cache_ttl"`
	PremiumSweepEvery time.Duration `mapstructure:"premium_sweep_every"`
}

type MarketConfig struct {
	CommissionRate  string        `mapstructure:"commission_rate"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

// Commission returns the parsed commission rate. Load has already validated it.
func (m MarketConfig) Commission() decimal.Decimal {
	d, err := decimal.NewFromString(m.CommissionRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads config from the given YAML file path. A .env file next to the
// config file (or in the working directory) is loaded first, and every key can
// be overridden with a VKRPG_ environment variable, e.g. VKRPG_IDENTITY_MODE.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Dir(path))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VKRPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A missing file is fine: everything can come from defaults and env.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("log.sentry_dsn", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("identity.app_secret", "")
	v.SetDefault("log.environment", "development")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("database.connect_wait", "30s")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_secret", "change-me")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("identity.mode", IdentityModeStrict)
	v.SetDefault("identity.fallback_identity_id", 12345)
	v.SetDefault("game.player_cache_size", 10000)
	v.SetDefault("game.player_cache_ttl", "10m")
	v.SetDefault("game.premium_sweep_every", "1m")
	v.SetDefault("market.commission_rate", "0.05")
	v.SetDefault("market.default_page_size", 50)
	v.SetDefault("market.max_page_size", 100)
	v.SetDefault("market.lock_ttl", "10s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Identity.Mode {
	case IdentityModeStrict:
		if c.Identity.AppSecret == "" {
			return fmt.Errorf("config: identity.app_secret is required in %s mode", IdentityModeStrict)
		}
	case IdentityModeBypass:
	default:
		return fmt.Errorf("config: unknown identity.mode %q", c.Identity.Mode)
	}

	rate, err := decimal.NewFromString(c.Market.CommissionRate)
	if err != nil {
		return fmt.Errorf("config: market.commission_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: market.commission_rate must be in [0, 1), got %s", rate)
	}
	if c.Market.DefaultPageSize <= 0 || c.Market.MaxPageSize < c.Market.DefaultPageSize {
		return fmt.Errorf("config: market page sizes are inconsistent (%d > %d)",
			c.Market.DefaultPageSize, c.Market.MaxPageSize)
	}
	return nil
}

func loadDotEnv(dir string) {
	for _, candidate := range []string{".env", filepath.Join(dir, ".env")} {
		// Load never overrides variables already present in the environment.
		_ = godotenv.Load(candidate)
	}
}

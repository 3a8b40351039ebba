package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied by Validate when a value is left empty.
const (
	DefaultRedisKeyPrefix     = "hexa:"
	DefaultPermissionCacheTTL = "5m"
	DefaultRateLimitWindow    = "1m"
	DefaultRateLimitMax       = 100
	DefaultRateLimitMessage   = "Too many requests, please try again later"
	DefaultSessionTTL         = "24h"
	DefaultMetricsPath        = "/metrics"
	DefaultMongoTimeout       = "10s"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Session   SessionConfig   `koanf:"session"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string     `koanf:"host"`
	Port    int        `koanf:"port"`
	Mode    string     `koanf:"mode"`
	Timeout string     `koanf:"timeout"`
	CORS    CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver         string         `koanf:"driver"`
	SQLite         SQLiteConfig   `koanf:"sqlite"`
	Postgres       PostgresConfig `koanf:"postgres"`
	Pool           PoolConfig     `koanf:"pool"`
	AutoMigrate    bool           `koanf:"auto_migrate"`
	ConnectRetries int            `koanf:"connect_retries"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// MongoConfig holds MongoDB settings. When enabled, products are stored in
// MongoDB instead of the SQL database.
type MongoConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URI            string `koanf:"uri"`
	Database       string `koanf:"database"`
	ConnectTimeout string `koanf:"connect_timeout"`
	ConnectRetries int    `koanf:"connect_retries"`
}

// RedisConfig holds Redis settings used by sessions and the rate limiter.
type RedisConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Addr           string `koanf:"addr"`
	Password       string `koanf:"password"`
	DB             int    `koanf:"db"`
	KeyPrefix      string `koanf:"key_prefix"`
	ConnectRetries int    `koanf:"connect_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// AuthConfig holds authentication and authorization settings.
type AuthConfig struct {
	Enabled         bool                  `koanf:"enabled"`
	JWTSecret       string                `koanf:"jwt_secret"`
	TokenExpiry     string                `koanf:"token_expiry"`
	PermissionCache PermissionCacheConfig `koanf:"permission_cache"`
}

// PermissionCacheConfig tunes the per-role permission cache.
type PermissionCacheConfig struct {
	Enabled *bool  `koanf:"enabled"`
	TTL     string `koanf:"ttl"`
}

// RateLimitConfig holds fixed-window rate limiting settings.
type RateLimitConfig struct {
	Enabled bool   `koanf:"enabled"`
	Window  string `koanf:"window"`
	Max     int64  `koanf:"max"`
	Message string `koanf:"message"`
	Store   string `koanf:"store"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	TTL string `koanf:"ttl"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__RATE_LIMIT__MAX=20 overrides rate_limit.max.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints and supported values, and fills
// in defaults.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateMongo,
		c.validateRedis,
		c.validateAuth,
		c.validateRateLimit,
		c.validateSession,
		c.validateMetrics,
		c.validateLog,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if err := optionalDuration("server.timeout", &c.Server.Timeout); err != nil {
		return err
	}
	if err := optionalDuration("server.cors.max_age", &c.Server.CORS.MaxAge); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}

	if c.Database.Driver == "sqlite" {
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath
	}

	if c.Database.Driver == "postgres" {
		pg := &c.Database.Postgres
		host := strings.TrimSpace(pg.Host)
		if host == "" {
			return fmt.Errorf("database.postgres.host is required when driver is postgres")
		}
		if pg.Port < 1 || pg.Port > 65535 {
			return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
		}
		user := strings.TrimSpace(pg.User)
		if user == "" {
			return fmt.Errorf("database.postgres.user is required when driver is postgres")
		}
		dbName := strings.TrimSpace(pg.DBName)
		if dbName == "" {
			return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
		}
		sslMode := strings.TrimSpace(pg.SSLMode)
		switch sslMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
		}
		if c.Server.Mode == gin.ReleaseMode {
			switch sslMode {
			case "require", "verify-ca", "verify-full":
			default:
				return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", pg.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
			}
		}
		pg.Host, pg.User, pg.DBName, pg.SSLMode = host, user, dbName, sslMode
	}

	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("invalid database.connect_retries %d: must not be negative", c.Database.ConnectRetries)
	}
	return optionalDuration("database.pool.conn_max_lifetime", &c.Database.Pool.ConnMaxLifetime)
}

func (c *Config) validateMongo() error {
	if !c.Mongo.Enabled {
		return nil
	}
	c.Mongo.URI = strings.TrimSpace(c.Mongo.URI)
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required when mongo is enabled")
	}
	if !strings.HasPrefix(c.Mongo.URI, "mongodb://") && !strings.HasPrefix(c.Mongo.URI, "mongodb+srv://") {
		return fmt.Errorf("invalid mongo.uri %q: must start with mongodb:// or mongodb+srv://", c.Mongo.URI)
	}
	c.Mongo.Database = strings.TrimSpace(c.Mongo.Database)
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required when mongo is enabled")
	}
	if c.Mongo.ConnectRetries < 0 {
		return fmt.Errorf("invalid mongo.connect_retries %d: must not be negative", c.Mongo.ConnectRetries)
	}
	return durationWithDefault("mongo.connect_timeout", &c.Mongo.ConnectTimeout, DefaultMongoTimeout)
}

func (c *Config) validateRedis() error {
	c.Redis.KeyPrefix = strings.TrimSpace(c.Redis.KeyPrefix)
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if !c.Redis.Enabled {
		return nil
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("invalid redis.db %d: must be between 0 and 15", c.Redis.DB)
	}
	if c.Redis.ConnectRetries < 0 {
		return fmt.Errorf("invalid redis.connect_retries %d: must not be negative", c.Redis.ConnectRetries)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if err := durationWithDefault("auth.permission_cache.ttl", &c.Auth.PermissionCache.TTL, DefaultPermissionCacheTTL); err != nil {
		return err
	}
	if !c.Auth.Enabled {
		return nil
	}

	jwtSecret := strings.TrimSpace(c.Auth.JWTSecret)
	if jwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(jwtSecret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	if c.Server.Mode == gin.ReleaseMode && CountSecretClasses(jwtSecret) < 3 {
		return fmt.Errorf("auth.jwt_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
	}
	c.Auth.JWTSecret = jwtSecret

	if strings.TrimSpace(c.Auth.TokenExpiry) == "" {
		return fmt.Errorf("auth.token_expiry is required when auth is enabled")
	}
	return optionalDuration("auth.token_expiry", &c.Auth.TokenExpiry)
}

func (c *Config) validateRateLimit() error {
	rl := &c.RateLimit
	if err := durationWithDefault("rate_limit.window", &rl.Window, DefaultRateLimitWindow); err != nil {
		return err
	}
	if rl.Max == 0 {
		rl.Max = DefaultRateLimitMax
	}
	if rl.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d: must be positive", rl.Max)
	}
	rl.Message = strings.TrimSpace(rl.Message)
	if rl.Message == "" {
		rl.Message = DefaultRateLimitMessage
	}

	rl.Store = strings.ToLower(strings.TrimSpace(rl.Store))
	switch rl.Store {
	case "":
		rl.Store = "memory"
	case "memory":
	case "redis":
		if rl.Enabled && !c.Redis.Enabled {
			return fmt.Errorf("rate_limit.store %q requires redis.enabled to be true", rl.Store)
		}
	default:
		return fmt.Errorf("invalid rate_limit.store %q: must be one of %q, %q", rl.Store, "memory", "redis")
	}
	return nil
}

func (c *Config) validateSession() error {
	return durationWithDefault("session.ttl", &c.Session.TTL, DefaultSessionTTL)
}

func (c *Config) validateMetrics() error {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path %q: must start with '/'", c.Metrics.Path)
	}
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}
	return nil
}

// optionalDuration trims *v and, when it is set, checks that it is a
// positive Go duration.
func optionalDuration(name string, v *string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", name, *v)
	}
	return nil
}

func durationWithDefault(name string, v *string, def string) error {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
	return optionalDuration(name, v)
}

// ParseDuration returns the duration in s, or def when s is empty or invalid.
// Values that went through Validate always parse.
func ParseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// PermissionCacheEnabled reports whether role permissions are cached. It
// defaults to true.
func (a AuthConfig) PermissionCacheEnabled() bool {
	return a.PermissionCache.Enabled == nil || *a.PermissionCache.Enabled
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in the given secret string.
func CountSecretClasses(secret string) int {
	var lower, upper, digit, symbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			classes++
		}
	}
	return classes
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/storage/redisstore"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Invitations   InvitationConfig    `yaml:"invitations"`
	Authz         AuthzConfig         `yaml:"authz"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds the shared store settings
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	URL            string        `yaml:"url"`
	MaxConns       int           `yaml:"max_conns"`
	MinConns       int           `yaml:"min_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

// RedisConfig holds Redis settings. An empty URL disables Redis.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
	Channel    string `yaml:"channel"`
}

// InvitationConfig holds the invitation expiry policy
type InvitationConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepEnabled  bool          `yaml:"sweep_enabled"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// AuthzConfig holds the authorization member cache settings. A zero TTL
// disables the cache. Membership changes reach other replicas through Redis;
// replicas running without Redis must set a zero TTL.
type AuthzConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// AuthConfig selects how bearer tokens are verified. OIDC takes precedence
// when an issuer is configured.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	JWTIssuer    string `yaml:"jwt_issuer"`
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCAudience string `yaml:"oidc_audience"`
}

// RateLimitConfig holds the per-user request budget. A zero rate disables it.
// Distributed shares the budget across replicas through Redis.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	Distributed       bool    `yaml:"distributed"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			MaxConns:       20,
			MinConns:       5,
			ConnectTimeout: 5 * time.Second,
			MaxLifetime:    30 * time.Minute,
			LockTimeout:    3 * time.Second,
		},
		Redis: RedisConfig{
			MaxRetries: 3,
			PoolSize:   10,
		},
		Invitations: InvitationConfig{
			TTL:           7 * 24 * time.Hour,
			SweepEnabled:  true,
			SweepSchedule: "*/5 * * * *",
		},
		Authz: AuthzConfig{
			CacheSize: 4096,
			CacheTTL:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "sitepass",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration from the YAML file named by SITEPASS_CONFIG,
// if any, then applies environment overrides and validates the result
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("SITEPASS_CONFIG"))
}

// Load reads path (skipped when empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SITEPASS_HOST", s.Host)
	s.Port = getEnv("SITEPASS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SITEPASS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SITEPASS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SITEPASS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SITEPASS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("SITEPASS_HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Driver = getEnv("SITEPASS_DB_DRIVER", d.Driver)
	d.URL = getEnv("SITEPASS_DB_URL", d.URL)
	d.MaxConns = getEnvInt("SITEPASS_DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("SITEPASS_DB_MIN_CONNS", d.MinConns)
	d.ConnectTimeout = getEnvDuration("SITEPASS_DB_CONNECT_TIMEOUT", d.ConnectTimeout)
	d.MaxLifetime = getEnvDuration("SITEPASS_DB_MAX_LIFETIME", d.MaxLifetime)
	d.LockTimeout = getEnvDuration("SITEPASS_DB_LOCK_TIMEOUT", d.LockTimeout)

	r := &c.Redis
	r.URL = getEnv("SITEPASS_REDIS_URL", r.URL)
	r.Password = getEnv("SITEPASS_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("SITEPASS_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("SITEPASS_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("SITEPASS_REDIS_POOL_SIZE", r.PoolSize)
	r.Channel = getEnv("SITEPASS_REDIS_CHANNEL", r.Channel)

	i := &c.Invitations
	i.TTL = getEnvDuration("SITEPASS_INVITATION_TTL", i.TTL)
	i.SweepEnabled = getEnvBool("SITEPASS_SWEEP_ENABLED", i.SweepEnabled)
	i.SweepSchedule = getEnv("SITEPASS_SWEEP_SCHEDULE", i.SweepSchedule)

	c.Authz.CacheSize = getEnvInt("SITEPASS_AUTHZ_CACHE_SIZE", c.Authz.CacheSize)
	c.Authz.CacheTTL = getEnvDuration("SITEPASS_AUTHZ_CACHE_TTL", c.Authz.CacheTTL)

	a := &c.Auth
	a.JWTSecret = getEnv("SITEPASS_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("SITEPASS_JWT_ISSUER", a.JWTIssuer)
	a.OIDCIssuer = getEnv("SITEPASS_OIDC_ISSUER", a.OIDCIssuer)
	a.OIDCAudience = getEnv("SITEPASS_OIDC_AUDIENCE", a.OIDCAudience)

	c.RateLimit.RequestsPerSecond = getEnvFloat("SITEPASS_RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = getEnvInt("SITEPASS_RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.Distributed = getEnvBool("SITEPASS_RATE_LIMIT_DISTRIBUTED", c.RateLimit.Distributed)

	o := &c.Observability
	o.LogLevel = getEnv("SITEPASS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("SITEPASS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("SITEPASS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SITEPASS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SITEPASS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SITEPASS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SITEPASS_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if _, err := sqldb.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Invitations.TTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if c.Invitations.SweepEnabled {
		if _, err := cron.ParseStandard(c.Invitations.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", c.Invitations.SweepSchedule, err)
		}
	}

	if c.Authz.CacheTTL > 0 && c.Authz.CacheSize <= 0 {
		return fmt.Errorf("authz cache size must be positive when the cache is enabled")
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.RateLimit.Distributed && c.Redis.URL == "" {
		return fmt.Errorf("distributed rate limiting requires a redis URL")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ValidateServe checks the settings the HTTP server additionally needs
func (c *Config) ValidateServe() error {
	if c.Auth.OIDCIssuer == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("either an OIDC issuer or a JWT secret is required")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCAudience == "" {
		return fmt.Errorf("OIDC audience is required when an OIDC issuer is configured")
	}
	return nil
}

// SQL returns the store connection settings
func (d DatabaseConfig) SQL() sqldb.Config {
	return sqldb.Config{
		Driver:         d.Driver,
		URL:            d.URL,
		MaxConns:       d.MaxConns,
		MinConns:       d.MinConns,
		ConnectTimeout: d.ConnectTimeout,
		MaxLifetime:    d.MaxLifetime,
		LockTimeout:    d.LockTimeout,
	}
}

// Store returns the Redis client settings
func (r RedisConfig) Store() redisstore.Config {
	return redisstore.Config{
		URL:        r.URL,
		Password:   r.Password,
		DB:         r.DB,
		MaxRetries: r.MaxRetries,
		PoolSize:   r.PoolSize,
	}
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the OpenTelemetry settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

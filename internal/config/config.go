package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Config represents the orchestrator configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Mail     MailConfig     `mapstructure:"mail"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents the PostgreSQL ledger store configuration
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int32  `mapstructure:"max_connections"`
	EnsureSchema   bool   `mapstructure:"ensure_schema"`
}

// RedisConfig represents the optional Redis lock store. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// AuthConfig selects how tenant tokens are verified. JWKSURL wins over JWTSecret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWKSURL   string `mapstructure:"jwks_url"`
}

// RuntimeConfig describes the container runtime and agent layout
type RuntimeConfig struct {
	DockerHost     string        `mapstructure:"docker_host"`
	Image          string        `mapstructure:"image"`
	Network        string        `mapstructure:"network"`
	AgentsRoot     string        `mapstructure:"agents_root"`
	HostAgentsRoot string        `mapstructure:"host_agents_root"`
	NamePrefixes   []string      `mapstructure:"name_prefixes"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	PullTimeout    time.Duration `mapstructure:"pull_timeout"`
}

// OllamaConfig represents the local inference sidecar
type OllamaConfig struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	PullTimeout time.Duration `mapstructure:"pull_timeout"`
}

// GatewayConfig holds the static token embedded in every agent config
type GatewayConfig struct {
	Token string `mapstructure:"token"`
}

// QuotaConfig represents free-tier usage limits
type QuotaConfig struct {
	DailySeconds   int `mapstructure:"daily_seconds"`
	QuantumSeconds int `mapstructure:"quantum_seconds"`
}

// ArchiveConfig represents the optional MinIO config archive. Empty Endpoint disables it.
type ArchiveConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// BillingConfig represents Razorpay credentials
type BillingConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PlanID        string `mapstructure:"plan_id"`
	PassAmount    int    `mapstructure:"pass_amount"`
	PassDays      int    `mapstructure:"pass_days"`
}

// MailConfig represents the SMTP relay used for receipts. Empty Host logs receipts instead.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// JobsConfig represents background job intervals
type JobsConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	DirectorySweepInterval time.Duration `mapstructure:"directory_sweep_interval"`
	GaugeInterval          time.Duration `mapstructure:"gauge_interval"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Runtime.Image == "" {
		return errors.New("runtime.image is required")
	}
	if c.Runtime.AgentsRoot == "" {
		return errors.New("runtime.agents_root is required")
	}
	if len(c.Runtime.NamePrefixes) == 0 {
		return errors.New("runtime.name_prefixes must not be empty")
	}
	root, err := filepath.Abs(c.Runtime.AgentsRoot)
	if err != nil {
		return fmt.Errorf("runtime.agents_root: %w", err)
	}
	c.Runtime.AgentsRoot = root
	// the daemon reads bind sources that are not absolute as named volumes
	if c.Runtime.HostAgentsRoot == "" {
		c.Runtime.HostAgentsRoot = root
	}
	if !filepath.IsAbs(c.Runtime.HostAgentsRoot) {
		return errors.New("runtime.host_agents_root must be an absolute path")
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return errors.New("redis.lock_ttl must be positive")
	}
	if c.Gateway.Token == "" {
		return errors.New("gateway.token is required")
	}
	if c.Quota.DailySeconds <= 0 || c.Quota.QuantumSeconds <= 0 {
		return errors.New("quota.daily_seconds and quota.quantum_seconds must be positive")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return errors.New("auth.jwt_secret or auth.jwks_url is required")
	}
	if c.Archive.Endpoint != "" && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive.endpoint is set")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return errors.New("logging.format must be one of: json, console")
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 20,
			EnsureSchema:   true,
		},
		Redis: RedisConfig{
			LockTTL: 5 * time.Minute,
		},
		Runtime: RuntimeConfig{
			Image:         "alpine/openclaw:latest",
			Network:       "localclaw_default",
			AgentsRoot:    "./agents",
			NamePrefixes:  []string{"agent-", "telebot-"},
			PublicBaseURL: "http://localhost",
			CallTimeout:   30 * time.Second,
			PullTimeout:   10 * time.Minute,
		},
		Ollama: OllamaConfig{
			URL:         "http://localclaw-ollama-1:11434",
			Model:       "qwen2.5:7b",
			PullTimeout: 20 * time.Minute,
		},
		Gateway: GatewayConfig{
			Token: "localclaw_master_token",
		},
		Quota: QuotaConfig{
			DailySeconds:   3600,
			QuantumSeconds: 60,
		},
		Archive: ArchiveConfig{
			Bucket: "localclaw-agents",
		},
		Billing: BillingConfig{
			PassAmount: 120000,
			PassDays:   30,
		},
		Mail: MailConfig{
			Port: 587,
		},
		Jobs: JobsConfig{
			Enabled:                true,
			DirectorySweepInterval: 15 * time.Minute,
			GaugeInterval:          time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

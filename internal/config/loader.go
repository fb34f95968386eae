package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from an optional YAML file and environment variables.
// Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		// A missing file is fine; defaults and environment still apply.
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	// Redis
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			cfg.Redis.DB = d
		}
	}

	// Auth
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if jwks := os.Getenv("JWKS_URL"); jwks != "" {
		cfg.Auth.JWKSURL = jwks
	}

	// Runtime
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		cfg.Runtime.DockerHost = host
	}
	if image := os.Getenv("AGENT_IMAGE"); image != "" {
		cfg.Runtime.Image = image
	}
	if root := os.Getenv("AGENTS_ROOT"); root != "" {
		cfg.Runtime.AgentsRoot = root
	}
	if root := os.Getenv("HOST_AGENTS_ROOT"); root != "" {
		cfg.Runtime.HostAgentsRoot = root
	}
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		cfg.Runtime.PublicBaseURL = base
	}

	if url := os.Getenv("OLLAMA_URL"); url != "" {
		cfg.Ollama.URL = url
	}
	if token := os.Getenv("OPENCLAW_GATEWAY_TOKEN"); token != "" {
		cfg.Gateway.Token = token
	}

	// MinIO archive
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		cfg.Archive.Endpoint = endpoint
	}
	if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" {
		cfg.Archive.AccessKey = key
	}
	if secret := os.Getenv("MINIO_SECRET_KEY"); secret != "" {
		cfg.Archive.SecretKey = secret
	}
	if os.Getenv("MINIO_USE_SSL") == "true" {
		cfg.Archive.UseSSL = true
	}

	// Razorpay
	if id := os.Getenv("RAZORPAY_KEY_ID"); id != "" {
		cfg.Billing.KeyID = id
	}
	if secret := os.Getenv("RAZORPAY_KEY_SECRET"); secret != "" {
		cfg.Billing.KeySecret = secret
	}
	if secret := os.Getenv("RAZORPAY_WEBHOOK_SECRET"); secret != "" {
		cfg.Billing.WebhookSecret = secret
	}
	if plan := os.Getenv("RAZORPAY_PLAN_ID"); plan != "" {
		cfg.Billing.PlanID = plan
	}

	// SMTP
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Mail.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Mail.Port = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.Mail.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		cfg.Mail.Password = pass
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		cfg.Mail.From = from
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

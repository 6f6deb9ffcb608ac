// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Jobx     JobxConfig
	Notifx   NotifxConfig
	Mailing  MailingConfig
}

// Process modes
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        string
	Mode        string
	BodyLimit   int
	CORSOrigins string
	Debug       bool
}

// Load reads .env (if any) and builds the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Mode:        strings.ToLower(getEnv("APP_MODE", ModeAll)),
			BodyLimit:   getEnvInt("SERVER_BODY_LIMIT", 10*1024*1024),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			Debug:       getEnvBool("DEBUG", false),
		},
		Redis:    loadRedisConfig(),
		Database: loadDatabaseConfig(),
		Jobx:     loadJobxConfig(),
		Notifx:   loadNotifxConfig(),
		Mailing:  loadMailingConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case ModeAll, ModeAPI, ModeWorker:
	default:
		return fmt.Errorf("config: unknown APP_MODE %q (use all, api or worker)", c.Server.Mode)
	}
	switch c.Mailing.LogBackend {
	case LogBackendRedis:
	case LogBackendPostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("config: MAILING_LOG_BACKEND=postgres requires DATABASE_URL or DB_HOST")
		}
	default:
		return fmt.Errorf("config: unknown MAILING_LOG_BACKEND %q", c.Mailing.LogBackend)
	}
	if c.Jobx.Concurrency < 1 {
		return fmt.Errorf("config: JOBX_CONCURRENCY must be positive")
	}
	if c.Jobx.JobTimeout <= 0 || c.Jobx.JobTimeout >= c.Jobx.LeaseTimeout {
		return fmt.Errorf("config: JOBX_JOB_TIMEOUT (%s) must be positive and below JOBX_LEASE_TIMEOUT (%s)",
			c.Jobx.JobTimeout, c.Jobx.LeaseTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

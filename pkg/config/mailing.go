package config

import (
	"strings"
	"time"
)

// Delivery log backends
const (
	LogBackendRedis    = "redis"
	LogBackendPostgres = "postgres"
)

// MailingConfig configures the mailing module.
type MailingConfig struct {
	LogBackend string
	KeyPrefix  string
	LockTTL    time.Duration
	Queue      string
}

func loadMailingConfig() MailingConfig {
	return MailingConfig{
		LogBackend: strings.ToLower(getEnv("MAILING_LOG_BACKEND", LogBackendRedis)),
		KeyPrefix:  getEnv("MAILING_KEY_PREFIX", ""),
		LockTTL:    getEnvDuration("MAILING_LOCK_TTL", 30*time.Second),
		Queue:      getEnv("MAILING_QUEUE", "email"),
	}
}

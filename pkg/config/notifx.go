package config

import (
	"strings"
	"time"
)

// Notification providers
const (
	ProviderSMTP    = "smtp"
	ProviderConsole = "console"
)

// NotifxConfig configures email delivery.
type NotifxConfig struct {
	Provider        string
	DialTimeout     time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration
	HeloName        string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		Provider:        strings.ToLower(getEnv("NOTIFX_PROVIDER", ProviderSMTP)),
		DialTimeout:     getEnvDuration("NOTIFX_DIAL_TIMEOUT", 60*time.Second),
		GreetingTimeout: getEnvDuration("NOTIFX_GREETING_TIMEOUT", 30*time.Second),
		SocketTimeout:   getEnvDuration("NOTIFX_SOCKET_TIMEOUT", 60*time.Second),
		HeloName:        getEnv("NOTIFX_HELO_NAME", "localhost"),
	}
}

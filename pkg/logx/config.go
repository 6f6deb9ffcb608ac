package logx

import (
	"io"
	"os"
	"strings"
	"time"
)

// Format represents the output format
type Format string

const (
	// FormatConsole outputs human readable, optionally colored lines
	FormatConsole Format = "console"
	// FormatJSON outputs one JSON object per line
	FormatJSON Format = "json"
)

// Config holds the logger configuration
type Config struct {
	Level        Level
	Format       Format
	EnableColors bool
	EnableCaller bool
	TimeFormat   string
	Output       io.Writer
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:        LevelInfo,
		Format:       FormatConsole,
		EnableColors: true,
		TimeFormat:   time.RFC3339,
		Output:       os.Stdout,
	}
}

// LoadFromEnv loads configuration from LOG_LEVEL, LOG_FORMAT, LOG_COLOR,
// LOG_CALLER and LOG_TIME_FORMAT.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = ParseLevel(v)
	}
	if v := os.Getenv("LOG_FORMAT"); strings.EqualFold(v, "json") {
		cfg.Format = FormatJSON
	}
	if v := os.Getenv("LOG_COLOR"); v != "" {
		cfg.EnableColors = envBool(v)
	}
	if v := os.Getenv("LOG_CALLER"); v != "" {
		cfg.EnableCaller = envBool(v)
	}
	if v := os.Getenv("LOG_TIME_FORMAT"); v != "" {
		switch strings.ToUpper(v) {
		case "RFC3339":
			cfg.TimeFormat = time.RFC3339
		case "RFC3339NANO":
			cfg.TimeFormat = time.RFC3339Nano
		case "UNIXMILLI":
			cfg.TimeFormat = "unixmilli"
		default:
			cfg.TimeFormat = v
		}
	}

	return cfg
}

func envBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

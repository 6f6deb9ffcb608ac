package logx

import "strings"

// Level represents logging level
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	// LevelOff disables all logging
	LevelOff
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"}

// String returns the string representation of the log level
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel parses a string into a Level, defaulting to info
func ParseLevel(level string) Level {
	s := strings.ToUpper(strings.TrimSpace(level))
	if s == "WARNING" {
		return LevelWarn
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i)
		}
	}
	return LevelInfo
}

// Enabled reports whether target passes a logger set to l
func (l Level) Enabled(target Level) bool {
	return l <= target
}

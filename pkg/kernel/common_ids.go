package kernel

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionID identifies an upload session and its recipient list.
type SessionID string

func NewSessionID(id string) SessionID { return SessionID(id) }
func (s SessionID) String() string     { return string(s) }
func (s SessionID) IsEmpty() bool      { return string(s) == "" }

// MaxSessionIDLength bounds caller-chosen session ids.
const MaxSessionIDLength = 128

// Valid reports whether s can name a session. Colons are reserved for log key
// namespaces, so "test:<ms>" can never alias a test run's log.
func (s SessionID) Valid() bool {
	return s != "" && len(s) <= MaxSessionIDLength && !strings.ContainsAny(string(s), ": \t\r\n")
}

// GenerateSessionID returns a random v4 session id.
func GenerateSessionID() SessionID { return SessionID(uuid.NewString()) }

// LogKey names an append-only delivery log.
type LogKey string

func (k LogKey) String() string { return string(k) }
func (k LogKey) IsEmpty() bool  { return string(k) == "" }

// SessionLogKey is the log key for a session's deliveries.
func SessionLogKey(id SessionID) LogKey {
	return LogKey("emaillog:" + id.String())
}

// TestLogKey is the log key for an ad-hoc test send started at t.
func TestLogKey(t time.Time) LogKey {
	return LogKey("emaillog:test:" + strconv.FormatInt(t.UnixMilli(), 10))
}

package kernel

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLogKeys(t *testing.T) {
	if got := SessionLogKey("abc"); got != "emaillog:abc" {
		t.Errorf("SessionLogKey = %q", got)
	}
	at := time.UnixMilli(1700000000123)
	if got := TestLogKey(at); got != "emaillog:test:1700000000123" {
		t.Errorf("TestLogKey = %q", got)
	}
}

func TestGenerateSessionID_Unique(t *testing.T) {
	a, b := GenerateSessionID(), GenerateSessionID()
	if a.IsEmpty() || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}
}

func TestSessionID_Valid(t *testing.T) {
	tests := []struct {
		id   SessionID
		want bool
	}{
		{"s1", true},
		{GenerateSessionID(), true},
		{"", false},
		{"test:1700000000000", false},
		{"a b", false},
		{"line\nbreak", false},
		{SessionID(strings.Repeat("x", MaxSessionIDLength+1)), false},
	}
	for _, tt := range tests {
		if got := tt.id.Valid(); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if RequestID(ctx) != "req-1" {
		t.Fatal("request id not stored")
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty request id")
	}
}

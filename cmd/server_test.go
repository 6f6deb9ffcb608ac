package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/gofiber/fiber/v2"
)

func TestGlobalErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: globalErrorHandler(false)})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return mailing.ErrInvalidInput("No sessionId provided")
	})
	app.Get("/down", func(c *fiber.Ctx) error {
		return mailing.ErrStoreUnavailable(errors.New("dial tcp 10.0.0.1:6379: connection refused"))
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/invalid", http.StatusBadRequest, "MAILING_INVALID_INPUT"},
		{"/down", http.StatusServiceUnavailable, "MAILING_STORE_UNAVAILABLE"},
		{"/boom", http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status %d, want %d (%s)", tt.path, resp.StatusCode, tt.status, body)
		}
		var out map[string]interface{}
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("%s: %v", tt.path, err)
		}
		if out["code"] != tt.code {
			t.Errorf("%s: code %v, want %s", tt.path, out["code"], tt.code)
		}
		details, _ := out["details"].(map[string]interface{})
		if _, ok := details["cause"]; ok {
			t.Errorf("%s: cause leaked outside debug mode", tt.path)
		}
	}
}

package notifx

import (
	"context"
)

// RelaySender submits a message through a caller-supplied relay.
type RelaySender interface {
	SendVia(ctx context.Context, relay Relay, msg EmailMessage) (SendResult, error)
}

// Client is the main entry point for sending notifications.
type Client struct {
	provider RelaySender
}

// NewClient creates a new notification client.
func NewClient(provider RelaySender) *Client {
	return &Client{provider: provider}
}

// Validate checks that a message can be submitted.
func Validate(relay Relay, msg EmailMessage) error {
	if relay.Host == "" {
		return notifxErrors.New(ErrInvalidRelay).WithDetail("reason", "empty host")
	}
	if relay.Port <= 0 || relay.Port > 65535 {
		return notifxErrors.New(ErrInvalidRelay).WithDetail("port", relay.Port)
	}
	if len(msg.To) == 0 {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipients")
	}
	if _, err := msg.Envelope(); err != nil {
		return notifxErrors.NewWithCause(ErrInvalidMessage, err).WithDetail("reason", "invalid from address")
	}
	return nil
}

// SendVia validates the message and hands it to the provider.
func (c *Client) SendVia(ctx context.Context, relay Relay, msg EmailMessage) (SendResult, error) {
	if err := Validate(relay, msg); err != nil {
		return SendResult{}, err
	}
	return c.provider.SendVia(ctx, relay, msg)
}

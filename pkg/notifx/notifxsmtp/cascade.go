// Package notifxsmtp submits mail to caller-supplied SMTP relays, trying a
// cascade of transport-security tiers so that relays with broken TLS or
// certificates still receive mail.
package notifxsmtp

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// Options holds the timeouts shared by every tier.
type Options struct {
	DialTimeout     time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration
	HeloName        string
}

// Option configures a Cascade.
type Option func(*Options)

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DialTimeout = d
		}
	}
}

func WithGreetingTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.GreetingTimeout = d
		}
	}
}

func WithSocketTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.SocketTimeout = d
		}
	}
}

// WithHeloName sets the name announced in EHLO.
func WithHeloName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.HeloName = name
		}
	}
}

// Probe is the verification outcome of one tier.
type Probe struct {
	Tier     string        `json:"tier"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Cascade implements notifx.RelaySender.
type Cascade struct {
	opts   Options
	verify func(ctx context.Context, relay notifx.Relay, tier Tier) error
}

// New creates a cascade sender.
func New(options ...Option) *Cascade {
	opts := Options{
		DialTimeout:     60 * time.Second,
		GreetingTimeout: 30 * time.Second,
		SocketTimeout:   60 * time.Second,
		HeloName:        "localhost",
	}
	for _, o := range options {
		o(&opts)
	}
	c := &Cascade{opts: opts}
	c.verify = c.verifyTier
	return c
}

// verifyTier opens a connection with tier and closes it politely.
func (c *Cascade) verifyTier(ctx context.Context, relay notifx.Relay, tier Tier) error {
	s, err := c.open(ctx, relay, tier)
	if err != nil {
		return err
	}
	defer s.close()
	s.extend()
	return s.client.Quit()
}

// Probe verifies every tier and reports each result.
func (c *Cascade) Probe(ctx context.Context, relay notifx.Relay) []Probe {
	tiers := Tiers(relay)
	out := make([]Probe, 0, len(tiers))
	for _, tier := range tiers {
		start := time.Now()
		err := c.verify(ctx, relay, tier)
		p := Probe{Tier: tier.Name, OK: err == nil, Duration: time.Since(start)}
		if err != nil {
			p.Error = err.Error()
		}
		out = append(out, p)
	}
	return out
}

// Select returns the first tier that verifies. When none does it returns the
// most permissive tier and verified is false.
func (c *Cascade) Select(ctx context.Context, relay notifx.Relay) (tier Tier, verified bool) {
	tiers := Tiers(relay)
	for _, t := range tiers {
		err := c.verify(ctx, relay, t)
		if err == nil {
			return t, true
		}
		if ctx.Err() != nil {
			break
		}
		logx.WithFields(logx.Fields{
			"relay": relay.Address(),
			"tier":  t.Name,
		}).WithError(err).Debug("notifx/smtp: tier did not verify")
	}
	return tiers[len(tiers)-1], false
}

// SendVia picks a tier and submits msg through it.
func (c *Cascade) SendVia(ctx context.Context, relay notifx.Relay, msg notifx.EmailMessage) (notifx.SendResult, error) {
	result := notifx.SendResult{To: strings.Join(msg.To, ", ")}

	if err := notifx.Validate(relay, msg); err != nil {
		result.Error = err.Error()
		return result, err
	}
	from, _ := msg.Envelope()

	body, err := compose(msg)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	tier, verified := c.Select(ctx, relay)
	result.Via = tier.Name

	if !verified {
		logx.WithFields(logx.Fields{
			"relay": relay.Address(),
			"tier":  tier.Name,
		}).Warn("notifx/smtp: no tier verified, sending unverified")
	}

	if err := c.send(ctx, relay, tier, from, msg.To, body); err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	return result, nil
}

func (c *Cascade) send(ctx context.Context, relay notifx.Relay, tier Tier, from string, to []string, body []byte) error {
	s, err := c.open(ctx, relay, tier)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.deliver(from, to, body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return smtpErrors.NewWithCause(ErrDeliver, err).WithDetail("tier", tier.Name)
	}
	return nil
}

// IsTransportError reports whether err came from talking to the relay rather
// than from the message itself.
func IsTransportError(err error) bool {
	for _, code := range []*errx.ErrorCode{ErrDial, ErrHandshake, ErrAuth, ErrDeliver} {
		if errx.IsCode(err, code) {
			return true
		}
	}
	return false
}

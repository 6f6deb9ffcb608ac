// Package dispatch turns a session's next batch of recipients, or an ad-hoc
// test list, into delivery jobs on the work queue.
package dispatch

import (
	"context"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/recipients"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// Enqueuer stores a batch of jobs all-or-nothing.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, jobs []jobx.Job) ([]string, error)
}

// Result describes an accepted dispatch.
type Result struct {
	BatchCount int           `json:"batch_count"`
	LogKey     kernel.LogKey `json:"log_key"`
}

// Dispatcher enqueues one delivery job per recipient. It never writes to the
// delivery log.
type Dispatcher struct {
	store session.Store
	queue Enqueuer
	name  string
	now   func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueue sets the jobx queue deliveries go to.
func WithQueue(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// WithClock overrides the clock used for test log keys.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(store session.Store, queue Enqueuer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store: store,
		queue: queue,
		name:  "email",
		now:   time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DispatchSession enqueues the next batch of at most limit recipients of a
// session and advances its cursor. A limit of zero or less takes every
// remaining recipient. When enqueueing fails the cursor does not move.
func (d *Dispatcher) DispatchSession(ctx context.Context, id kernel.SessionID, limit int, msg Message, relay notifx.Relay) (Result, error) {
	if id.IsEmpty() {
		return Result{}, mailing.ErrInvalidInput("No sessionId provided")
	}
	if err := validate(msg, relay); err != nil {
		return Result{}, err
	}
	key := kernel.SessionLogKey(id)

	claim, err := d.store.Advance(ctx, id, limit, func(ctx context.Context, c session.Claim) error {
		return d.enqueue(ctx, c.Batch, msg, relay, key)
	})
	if err != nil {
		return Result{}, mailing.Translate(err)
	}

	logx.WithFields(logx.Fields{
		"session_id": id.String(),
		"from":       claim.From,
		"to":         claim.To(),
		"request_id": kernel.RequestID(ctx),
	}).Infof("dispatch: enqueued %d deliveries", len(claim.Batch))

	return Result{BatchCount: len(claim.Batch), LogKey: key}, nil
}

// DispatchTest enqueues a delivery for every valid address in a comma
// separated list. It has no session and no cursor.
func (d *Dispatcher) DispatchTest(ctx context.Context, raw string, msg Message, relay notifx.Relay) (Result, error) {
	if err := validate(msg, relay); err != nil {
		return Result{}, err
	}
	addrs := recipients.SplitList(raw)
	if len(addrs) == 0 {
		return Result{}, mailing.ErrInvalidInput("No valid test recipients")
	}
	key := kernel.TestLogKey(d.now())

	if err := d.enqueue(ctx, addrs, msg, relay, key); err != nil {
		return Result{}, mailing.Translate(err)
	}

	logx.WithField("log_key", key.String()).Infof("dispatch: enqueued %d test deliveries", len(addrs))
	return Result{BatchCount: len(addrs), LogKey: key}, nil
}

func validate(msg Message, relay notifx.Relay) error {
	switch {
	case relay.Host == "":
		return mailing.ErrInvalidInput("smtp host is required")
	case relay.Port <= 0 || relay.Port > 65535:
		return mailing.ErrInvalidInput("smtp port is invalid").WithDetail("port", relay.Port)
	case !recipients.Valid(msg.FromEmail):
		return mailing.ErrInvalidInput("sender address is invalid").WithDetail("from", msg.FromEmail)
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, addrs []string, msg Message, relay notifx.Relay, key kernel.LogKey) error {
	jobs, err := buildJobs(addrs, msg, relay, key, d.name)
	if err != nil {
		return errx.Wrap(err, "failed to encode delivery job", errx.TypeInternal)
	}
	if _, err := d.queue.EnqueueBatch(ctx, jobs); err != nil {
		logx.WithField("log_key", key.String()).WithError(err).Error("dispatch: enqueue failed")
		return err
	}
	return nil
}

// Package status derives live progress for a session from its cursor and
// delivery log. Nothing is cached; every call rescans the log.
package status

import (
	"context"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
)

// Snapshot is the progress of one session at the time it was read.
type Snapshot struct {
	Total     int    `json:"total"`
	SentIndex int    `json:"sentIndex"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
	LastError string `json:"lastError"`
}

type Aggregator struct {
	sessions session.Store
	log      deliverylog.Log
}

func NewAggregator(sessions session.Store, log deliverylog.Log) *Aggregator {
	return &Aggregator{sessions: sessions, log: log}
}

// Get reads the cursor, then the log. An unknown session reports zeros for
// its totals while still counting any entries logged under its key.
func (a *Aggregator) Get(ctx context.Context, id kernel.SessionID) (Snapshot, error) {
	if id.IsEmpty() {
		return Snapshot{}, mailing.ErrInvalidInput("No sessionId provided")
	}

	var snap Snapshot
	sess, err := a.sessions.Get(ctx, id)
	switch {
	case err == nil:
		snap.Total = sess.Total()
		snap.SentIndex = sess.SentIndex
		snap.Pending = sess.Remaining()
	case errx.IsCode(err, session.CodeSessionNotFound):
	default:
		return Snapshot{}, mailing.Translate(err)
	}

	entries, err := a.log.Entries(ctx, kernel.SessionLogKey(id))
	if err != nil {
		return Snapshot{}, mailing.Translate(err)
	}

	tally := deliverylog.Count(entries)
	snap.Sent = tally.Sent
	snap.Failed = tally.Failed
	snap.LastError = tally.LastError
	return snap, nil
}

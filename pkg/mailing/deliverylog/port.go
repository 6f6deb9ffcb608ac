package deliverylog

import (
	"context"

	"github.com/Abraxas-365/bulkmail/pkg/kernel"
)

// Log is an append-only sequence of entries per log key. Readers see a
// prefix of the log that only grows; entries are never changed or removed.
type Log interface {
	Append(ctx context.Context, key kernel.LogKey, e Entry) error
	Entries(ctx context.Context, key kernel.LogKey) ([]Entry, error)
}

package session

import (
	"context"

	"github.com/Abraxas-365/bulkmail/pkg/kernel"
)

// Store persists sessions and their cursors.
type Store interface {
	// Create stores a new session with its cursor at zero. Recipients are
	// immutable, so an existing id is rejected.
	Create(ctx context.Context, s Session) error

	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id kernel.SessionID) (*Session, error)

	// Advance claims the next batch of up to limit recipients under an
	// exclusive per-session lock and calls fn with it. The cursor moves by
	// len(batch) only when fn returns nil; otherwise it is left unchanged
	// and fn's error is returned.
	Advance(ctx context.Context, id kernel.SessionID, limit int, fn func(ctx context.Context, c Claim) error) (Claim, error)
}

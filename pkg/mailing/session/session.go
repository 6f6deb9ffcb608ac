package session

import "github.com/Abraxas-365/bulkmail/pkg/kernel"

// Session is one bulk upload: a fixed recipient list and a cursor counting
// how many of them have been handed to the queue.
type Session struct {
	ID         kernel.SessionID `json:"session_id"`
	Recipients []string         `json:"recipients"`
	SentIndex  int              `json:"sent_index"`
}

// Total is the number of recipients.
func (s Session) Total() int { return len(s.Recipients) }

// Remaining is the number of recipients not yet dispatched.
func (s Session) Remaining() int { return len(s.Recipients) - s.SentIndex }

// Next returns the next batch of at most limit recipients. A limit of zero
// or less selects everything that remains.
func (s Session) Next(limit int) []string {
	if s.SentIndex >= len(s.Recipients) {
		return nil
	}
	end := len(s.Recipients)
	if limit > 0 && s.SentIndex+limit < end {
		end = s.SentIndex + limit
	}
	return s.Recipients[s.SentIndex:end]
}

// LogKey is the delivery log shared by every batch of the session.
func (s Session) LogKey() kernel.LogKey {
	return kernel.SessionLogKey(s.ID)
}

// Claim describes a batch taken from a session.
type Claim struct {
	SessionID kernel.SessionID
	From      int
	Batch     []string
}

// To is the cursor value after the claim.
func (c Claim) To() int { return c.From + len(c.Batch) }

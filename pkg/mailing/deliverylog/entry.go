package deliverylog

import "time"

// Status is the outcome of one delivery attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Entry is an immutable record of one delivery attempt.
type Entry struct {
	Recipient string
	Status    Status
	// Error is set only for failed entries.
	Error string
	Time  time.Time
}

// Sent builds a success entry.
func Sent(recipient string, at time.Time) Entry {
	return Entry{Recipient: recipient, Status: StatusSent, Time: at}
}

// Failed builds a failure entry.
func Failed(recipient, reason string, at time.Time) Entry {
	return Entry{Recipient: recipient, Status: StatusFailed, Error: reason, Time: at}
}

// Tally counts outcomes and remembers the most recent failure message.
type Tally struct {
	Sent      int
	Failed    int
	LastError string
}

// Count folds entries, in log order, into a Tally.
func Count(entries []Entry) Tally {
	var t Tally
	for _, e := range entries {
		switch e.Status {
		case StatusSent:
			t.Sent++
		case StatusFailed:
			t.Failed++
			t.LastError = e.Error
		}
	}
	return t
}

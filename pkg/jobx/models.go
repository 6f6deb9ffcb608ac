package jobx

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Job represents a unit of work to be enqueued.
type Job struct {
	Type    string          `json:"type"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	// MaxRetries is the number of redeliveries after the first failed
	// attempt. Zero means the client default.
	MaxRetries int `json:"max_retries"`
}

// JobInfo is the full representation of a job stored in the backend.
type JobInfo struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	MaxRetries int             `json:"max_retries"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Claim identifies the lease a worker got from Dequeue. Backends use it
	// to ignore results from a worker whose lease was reaped.
	Claim string `json:"-"`
}

// CanRetry reports whether another attempt is allowed after the current one.
func (j *JobInfo) CanRetry() bool {
	return j.Attempts <= j.MaxRetries
}

// Result is the outcome of one handler run.
type Result struct {
	failed    bool
	permanent bool
	reason    string
}

// Success reports a completed job.
func Success() Result { return Result{} }

// Failure reports a failed attempt. The job is retried while it has
// retries left.
func Failure(reason string) Result {
	return Result{failed: true, reason: reason}
}

// Failuref is Failure with a formatted reason.
func Failuref(format string, args ...interface{}) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// Discard reports a failure that no retry can fix, such as an undecodable
// payload. The job is marked failed immediately.
func Discard(reason string) Result {
	return Result{failed: true, permanent: true, reason: reason}
}

// OK reports whether the job succeeded.
func (r Result) OK() bool { return !r.failed }

// Permanent reports whether the failure must not be retried.
func (r Result) Permanent() bool { return r.permanent }

// Reason is the failure message, empty on success.
func (r Result) Reason() string { return r.reason }

func (r Result) String() string {
	switch {
	case !r.failed:
		return "success"
	case r.permanent:
		return "discarded: " + r.reason
	default:
		return "failure: " + r.reason
	}
}

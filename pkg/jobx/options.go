package jobx

import "time"

// WorkerOptions configures the job processing client.
type WorkerOptions struct {
	Queues            []string
	Concurrency       int
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	DequeueTimeout    time.Duration
	DefaultRetryDelay time.Duration
	MaxRetries        int
	JobTimeout        time.Duration
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:            []string{"default"},
		Concurrency:       4,
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		DequeueTimeout:    5 * time.Second,
		DefaultRetryDelay: 30 * time.Second,
		MaxRetries:        3,
	}
}

// WorkerOption is a functional option for configuring the client.
type WorkerOption func(*WorkerOptions)

// WithQueues sets the queues to process, highest priority first.
func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) {
		if len(queues) > 0 {
			o.Queues = queues
		}
	}
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithPollInterval sets how often scheduled jobs are promoted and expired
// leases are reaped.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for workers to finish on shutdown.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.ShutdownTimeout = d
	}
}

// WithDequeueTimeout sets how long one dequeue call may wait for work.
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.DequeueTimeout = d
		}
	}
}

// WithDefaultRetryDelay sets the delay before retrying a failed job.
func WithDefaultRetryDelay(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d >= 0 {
			o.DefaultRetryDelay = d
		}
	}
}

// WithMaxRetries sets the retry ceiling applied to jobs enqueued without one.
func WithMaxRetries(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n >= 0 {
			o.MaxRetries = n
		}
	}
}

// WithJobTimeout bounds a single handler run. It should be shorter than the
// queue lease so a slow job is not redelivered while still running.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.JobTimeout = d
	}
}

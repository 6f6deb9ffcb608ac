package jobx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
)

// HandlerFunc processes a job and reports its outcome.
type HandlerFunc func(ctx context.Context, job *JobInfo) Result

// JobEnqueuer enqueues jobs for processing.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error)
	// EnqueueBatch stores every job or none of them. Jobs of one queue are
	// delivered in slice order.
	EnqueueBatch(ctx context.Context, jobs []Job) ([]string, error)
}

// JobStatusReader reads job status.
type JobStatusReader interface {
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
}

// JobProcessor provides backend operations for the worker loop.
type JobProcessor interface {
	// Dequeue claims a job under a lease. It returns nil, nil when no job
	// arrived within timeout.
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	// Complete, Fail and Abandon act only while job still holds its lease and
	// return an ErrLeaseLost error otherwise.
	Complete(ctx context.Context, job *JobInfo) error
	// Fail records a failed attempt and schedules a retry after delay when
	// the job has retries left. It reports whether a retry was scheduled.
	Fail(ctx context.Context, job *JobInfo, reason string, delay time.Duration) (retry bool, err error)
	// Abandon marks the job failed without retrying.
	Abandon(ctx context.Context, job *JobInfo, reason string) error
	PromoteScheduled(ctx context.Context, queues []string) error
	// ReapExpired requeues claimed jobs whose lease ran out.
	ReapExpired(ctx context.Context, queues []string) (int, error)
}

// Queue combines all backend operations.
type Queue interface {
	JobEnqueuer
	JobStatusReader
	JobProcessor
}

// Client is the main entry point for enqueuing and processing jobs.
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

// NewClient creates a new job processing client.
func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for a given job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

func (c *Client) prepare(job Job) (Job, error) {
	if job.Type == "" {
		return job, jobxErrors.NewWithMessage(ErrInvalidJob, "job type is required")
	}
	if job.Queue == "" {
		job.Queue = c.opts.Queues[0]
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = c.opts.MaxRetries
	}
	return job, nil
}

// Enqueue enqueues a job for immediate processing.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	job, err := c.prepare(job)
	if err != nil {
		return "", err
	}
	return c.queue.Enqueue(ctx, job)
}

// EnqueueDelayed enqueues a job with a delay before it becomes available.
func (c *Client) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error) {
	job, err := c.prepare(job)
	if err != nil {
		return "", err
	}
	return c.queue.EnqueueDelayed(ctx, job, delay)
}

// EnqueueBatch enqueues all jobs atomically. On error nothing was enqueued.
func (c *Client) EnqueueBatch(ctx context.Context, jobs []Job) ([]string, error) {
	if len(jobs) == 0 {
		return nil, jobxErrors.New(ErrEmptyBatch)
	}
	prepared := make([]Job, len(jobs))
	for i, job := range jobs {
		p, err := c.prepare(job)
		if err != nil {
			return nil, errx.Wrapf(err, errx.TypeValidation, "batch job %d", i)
		}
		prepared[i] = p
	}
	return c.queue.EnqueueBatch(ctx, prepared)
}

// GetJob returns the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.queue.GetJob(ctx, jobID)
}

// Start begins processing jobs. It blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: starting %d workers on queues %v", c.opts.Concurrency, c.opts.Queues)

	// Jobs in flight get their own context so shutdown can let them finish.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.maintenanceLoop(ctx)
	}()

	for i := range c.opts.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, workCtx, id)
		}(i)
	}

	<-ctx.Done()
	logx.Info("jobx: shutting down workers...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		cancelWork()
		logx.Warn("jobx: shutdown timed out, unfinished jobs will be redelivered after their lease expires")
	}

	return nil
}

func (c *Client) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.PromoteScheduled(ctx, c.opts.Queues); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("jobx: failed to promote scheduled jobs")
			}
			n, err := c.queue.ReapExpired(ctx, c.opts.Queues)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("jobx: failed to reap expired leases")
			} else if n > 0 {
				logx.Warnf("jobx: requeued %d jobs with expired leases", n)
			}
		}
	}
}

func (c *Client) workerLoop(ctx, workCtx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.opts.PollInterval):
			}
			continue
		}
		if job == nil {
			continue
		}

		c.processJob(workCtx, job)
	}
}

func (c *Client) processJob(ctx context.Context, job *JobInfo) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.Warnf("jobx: no handler for job type %q (id=%s)", job.Type, job.ID)
		err := c.queue.Abandon(ctx, job, "no handler registered for job type")
		c.settle(logx.WithField("job_id", job.ID), "abandon", err)
		return
	}

	res := c.run(ctx, handler, job)

	log := logx.WithFields(logx.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempt":  job.Attempts,
	})

	switch {
	case res.OK():
		c.settle(log, "complete", c.queue.Complete(ctx, job))

	case res.Permanent():
		log.Warnf("jobx: job discarded: %s", res.Reason())
		c.settle(log, "abandon", c.queue.Abandon(ctx, job, res.Reason()))

	default:
		retry, err := c.queue.Fail(ctx, job, res.Reason(), c.opts.DefaultRetryDelay)
		if err != nil {
			c.settle(log, "fail", err)
			return
		}
		if retry {
			log.Warnf("jobx: job failed, retrying in %s: %s", c.opts.DefaultRetryDelay, res.Reason())
		} else {
			log.Warnf("jobx: job failed permanently after %d attempts: %s", job.Attempts, res.Reason())
		}
	}
}

// settle logs the outcome of reporting a result to the backend.
func (c *Client) settle(log *logx.Entry, action string, err error) {
	switch {
	case err == nil:
	case errx.IsCode(err, ErrLeaseLost):
		log.Warnf("jobx: lease expired before %s, another worker owns the job now", action)
	default:
		log.WithError(err).Errorf("jobx: failed to %s job", action)
	}
}

func (c *Client) run(ctx context.Context, handler HandlerFunc, job *JobInfo) (res Result) {
	if c.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = Failure(fmt.Sprintf("handler panic: %v", r))
		}
	}()

	return handler(ctx, job)
}

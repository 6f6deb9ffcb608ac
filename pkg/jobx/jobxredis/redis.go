package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements jobx.Queue backed by Redis.
//
// A claimed job sits in jobx:processing:<queue> with a deadline in
// jobx:leases:<queue> until it is completed or failed. Every claim gets a
// fresh token in jobx:claims:<queue>. ReapExpired returns jobs whose deadline
// passed to the ready queue and revokes their token, and Complete, Fail and
// Abandon only act for the current token. A worker that outlived its lease
// therefore cannot touch the job once someone else claimed it.
type RedisQueue struct {
	rdb          redis.UniversalClient
	leaseTimeout time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithLeaseTimeout sets how long a claimed job may run before it is
// considered abandoned.
func WithLeaseTimeout(d time.Duration) Option {
	return func(q *RedisQueue) {
		if d > 0 {
			q.leaseTimeout = d
		}
	}
}

// WithPollInterval sets how often an idle Dequeue retries the claim.
func WithPollInterval(d time.Duration) Option {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(rdb redis.UniversalClient, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		rdb:          rdb,
		leaseTimeout: 5 * time.Minute,
		pollInterval: 200 * time.Millisecond,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Key helpers
func queueKey(name string) string      { return fmt.Sprintf("jobx:queue:%s", name) }
func processingKey(name string) string { return fmt.Sprintf("jobx:processing:%s", name) }
func leasesKey(name string) string     { return fmt.Sprintf("jobx:leases:%s", name) }
func claimsKey(name string) string     { return fmt.Sprintf("jobx:claims:%s", name) }
func scheduledKey(name string) string  { return fmt.Sprintf("jobx:scheduled:%s", name) }
func jobKey(id string) string          { return fmt.Sprintf("jobx:job:%s", id) }

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func (q *RedisQueue) newInfo(job jobx.Job) jobx.JobInfo {
	now := q.now()
	return jobx.JobInfo{
		ID:         uuid.NewString(),
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.JobStatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Enqueue adds a job to the ready queue immediately.
func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	ids, err := q.EnqueueBatch(ctx, []jobx.Job{job})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// EnqueueBatch writes every job and pushes its id inside one MULTI/EXEC, so
// either all jobs become visible to workers or none do.
func (q *RedisQueue) EnqueueBatch(ctx context.Context, jobs []jobx.Job) ([]string, error) {
	ids := make([]string, len(jobs))
	data := make([][]byte, len(jobs))
	for i, job := range jobs {
		info := q.newInfo(job)
		b, err := json.Marshal(info)
		if err != nil {
			return nil, redisErrors.NewWithCause(ErrMarshal, err).WithDetail("index", i)
		}
		ids[i] = info.ID
		data[i] = b
	}

	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, job := range jobs {
			pipe.Set(ctx, jobKey(ids[i]), data[i], 0)
			pipe.LPush(ctx, queueKey(job.Queue), ids[i])
		}
		return nil
	})
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrEnqueue, err).WithDetail("jobs", len(jobs))
	}

	return ids, nil
}

// EnqueueDelayed adds a job to the scheduled set with a future execution time.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	info := q.newInfo(job)
	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	score := float64(info.CreatedAt.Add(delay).UnixMilli())

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(info.ID), data, 0)
		pipe.ZAdd(ctx, scheduledKey(job.Queue), redis.Z{Score: score, Member: info.ID})
		return nil
	})
	if err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).
			WithDetail("queue", job.Queue).
			WithDetail("delay", delay.String())
	}

	return info.ID, nil
}

// GetJob retrieves job info by ID.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
		}
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}

	return &info, nil
}

// Dequeue claims the next job from the first non-empty queue, polling until
// timeout elapses.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, 0, len(queues)*4)
	for _, name := range queues {
		keys = append(keys, queueKey(name), processingKey(name), leasesKey(name), claimsKey(name))
	}

	deadline := time.Now().Add(timeout)
	for {
		token := uuid.NewString()
		id, err := claimScript.Run(ctx, q.rdb, keys, millis(q.now().Add(q.leaseTimeout)), token).Text()
		switch {
		case err == nil:
			return q.activate(ctx, id, token)
		case errors.Is(err, redis.Nil):
		case ctx.Err() != nil:
			return nil, nil
		default:
			return nil, redisErrors.NewWithCause(ErrDequeue, err)
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		if wait > q.pollInterval {
			wait = q.pollInterval
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}
	}
}

func (q *RedisQueue) activate(ctx context.Context, jobID, token string) (*jobx.JobInfo, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	info.Status = jobx.JobStatusActive
	info.Attempts++
	info.UpdatedAt = q.now()

	if err := q.save(ctx, q.rdb, info); err != nil {
		return nil, err
	}
	info.Claim = token
	return info, nil
}

func (q *RedisQueue) save(ctx context.Context, c redis.Cmdable, info *jobx.JobInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", info.ID)
	}
	if err := c.Set(ctx, jobKey(info.ID), data, 0).Err(); err != nil {
		return redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", info.ID)
	}
	return nil
}

// finish stores the terminal or retrying state and releases the lease in one
// script run. A positive retryAt also schedules the next attempt. It returns
// a jobx.ErrLeaseLost error when job.Claim is no longer the current claim.
func (q *RedisQueue) finish(ctx context.Context, job *jobx.JobInfo, retryAt time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", job.ID)
	}

	retry := ""
	if !retryAt.IsZero() {
		retry = millis(retryAt)
	}

	keys := []string{
		jobKey(job.ID),
		processingKey(job.Queue),
		leasesKey(job.Queue),
		claimsKey(job.Queue),
		scheduledKey(job.Queue),
	}
	owned, err := finishScript.Run(ctx, q.rdb, keys, job.ID, job.Claim, data, retry).Int()
	if err != nil {
		return redisErrors.NewWithCause(ErrUpdate, err).
			WithDetail("job_id", job.ID).
			WithDetail("status", string(job.Status))
	}
	if owned == 0 {
		return jobx.LeaseLost(job.ID)
	}
	return nil
}

// current reloads the stored record of a claimed job and keeps the caller's
// claim token.
func (q *RedisQueue) current(ctx context.Context, job *jobx.JobInfo) (*jobx.JobInfo, error) {
	info, err := q.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	info.Claim = job.Claim
	return info, nil
}

// Complete marks a job as successfully completed.
func (q *RedisQueue) Complete(ctx context.Context, job *jobx.JobInfo) error {
	info, err := q.current(ctx, job)
	if err != nil {
		return err
	}

	info.Status = jobx.JobStatusCompleted
	info.Error = ""
	info.UpdatedAt = q.now()

	return q.finish(ctx, info, time.Time{})
}

// Fail records a failed attempt and schedules a retry while retries remain.
func (q *RedisQueue) Fail(ctx context.Context, job *jobx.JobInfo, reason string, delay time.Duration) (bool, error) {
	info, err := q.current(ctx, job)
	if err != nil {
		return false, err
	}

	retry := info.CanRetry()
	info.Error = reason
	info.UpdatedAt = q.now()

	var retryAt time.Time
	if retry {
		info.Status = jobx.JobStatusRetrying
		retryAt = info.UpdatedAt.Add(delay)
	} else {
		info.Status = jobx.JobStatusFailed
	}

	if err := q.finish(ctx, info, retryAt); err != nil {
		return false, err
	}
	return retry, nil
}

// Abandon marks a job failed without scheduling a retry.
func (q *RedisQueue) Abandon(ctx context.Context, job *jobx.JobInfo, reason string) error {
	info, err := q.current(ctx, job)
	if err != nil {
		return err
	}

	info.Status = jobx.JobStatusFailed
	info.Error = reason
	info.UpdatedAt = q.now()

	return q.finish(ctx, info, time.Time{})
}

// PromoteScheduled moves jobs whose scheduled time has passed to the ready queue.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := millis(q.now())

	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb, []string{scheduledKey(name), queueKey(name)}, now).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", name)
		}
	}

	return nil
}

// ReapExpired requeues claimed jobs whose lease has expired and returns how
// many were moved.
func (q *RedisQueue) ReapExpired(ctx context.Context, queues []string) (int, error) {
	now := millis(q.now())
	total := 0

	for _, name := range queues {
		n, err := reapScript.Run(ctx, q.rdb,
			[]string{leasesKey(name), processingKey(name), queueKey(name), claimsKey(name)},
			now,
		).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return total, redisErrors.NewWithCause(ErrReap, err).WithDetail("queue", name)
		}
		total += n
	}

	return total, nil
}

// QueueLength returns the number of ready jobs in a queue.
func (q *RedisQueue) QueueLength(ctx context.Context, queue string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey(queue)).Result()
	if err != nil {
		return 0, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("queue", queue)
	}
	return n, nil
}

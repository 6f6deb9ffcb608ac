// Package delivery sends one queued message per job and records the outcome
// in the delivery log.
package delivery

import (
	"context"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// Worker handles dispatch.JobType jobs. It keeps no per-job state, so one
// Worker serves every jobx goroutine.
type Worker struct {
	sender notifx.RelaySender
	log    deliverylog.Log
	now    func() time.Time
}

// NewWorker creates a delivery worker.
func NewWorker(sender notifx.RelaySender, log deliverylog.Log) *Worker {
	return &Worker{sender: sender, log: log, now: time.Now}
}

// Register binds the worker to its job type.
func (w *Worker) Register(c *jobx.Client) {
	c.Register(dispatch.JobType, w.Handle)
}

// Handle sends one message. Every attempt appends an entry to the log, so a
// redelivered job may leave several. A failed send or a failed append is
// reported to the queue for retry; a message the relay sender rejects as
// invalid is discarded.
func (w *Worker) Handle(ctx context.Context, info *jobx.JobInfo) jobx.Result {
	job, err := dispatch.DecodeJob(info.Payload)
	if err != nil {
		logx.WithField("job_id", info.ID).WithError(err).Error("delivery: undecodable payload")
		return jobx.Discard("invalid payload: " + err.Error())
	}
	if job.LogKey.IsEmpty() || job.Recipient == "" {
		logx.WithField("job_id", info.ID).Error("delivery: payload missing log key or recipient")
		return jobx.Discard("payload missing log key or recipient")
	}

	fields := logx.Fields{
		"job_id":    info.ID,
		"recipient": job.Recipient,
		"log_key":   job.LogKey.String(),
		"attempt":   info.Attempts,
	}

	res, sendErr := w.sender.SendVia(ctx, job.Relay, job.Email())

	var entry deliverylog.Entry
	if sendErr != nil {
		entry = deliverylog.Failed(job.Recipient, sendErr.Error(), w.now())
	} else {
		entry = deliverylog.Sent(job.Recipient, w.now())
	}

	if err := w.log.Append(context.WithoutCancel(ctx), job.LogKey, entry); err != nil {
		logx.WithFields(fields).WithError(err).Error("delivery: failed to record outcome")
		return jobx.Failuref("log append failed: %v", err)
	}

	if sendErr != nil {
		logx.WithFields(fields).WithError(sendErr).Warn("delivery: send failed")
		if errx.From(sendErr).Type == errx.TypeValidation {
			return jobx.Discard(sendErr.Error())
		}
		return jobx.Failure(sendErr.Error())
	}

	logx.WithFields(fields).WithField("via", res.Via).Debug("delivery: sent")
	return jobx.Success()
}

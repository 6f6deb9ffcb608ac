package mailingsrv

import (
	"context"
	"io"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/recipients"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/status"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// DispatchRequest selects either a session batch or a test send.
type DispatchRequest struct {
	SessionID kernel.SessionID
	// Limit caps the session batch. Zero or less sends everything that
	// remains.
	Limit int

	Test           bool
	TestRecipients string

	Message dispatch.Message
	Relay   notifx.Relay
}

// Service is the boundary of the mailing context. Every error it returns
// carries a MAILING code.
type Service struct {
	sessions   session.Store
	dispatcher *dispatch.Dispatcher
	aggregator *status.Aggregator
	log        deliverylog.Log
}

func NewService(sessions session.Store, dispatcher *dispatch.Dispatcher, aggregator *status.Aggregator, log deliverylog.Log) *Service {
	return &Service{
		sessions:   sessions,
		dispatcher: dispatcher,
		aggregator: aggregator,
		log:        log,
	}
}

// CreateSession stores the valid addresses of addrs under id, generating an
// id when none is given.
func (s *Service) CreateSession(ctx context.Context, id kernel.SessionID, addrs []string) (*session.Session, error) {
	valid := recipients.Filter(addrs)
	if len(valid) == 0 {
		return nil, mailing.ErrInvalidInput("No valid recipients")
	}
	if id.IsEmpty() {
		id = kernel.GenerateSessionID()
	} else if err := checkSessionID(id); err != nil {
		return nil, err
	}

	sess := session.Session{ID: id, Recipients: valid}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, mailing.Translate(err)
	}

	logx.WithFields(logx.Fields{
		"session_id": id.String(),
		"received":   len(addrs),
		"valid":      len(valid),
	}).Info("mailing: session created")
	return &sess, nil
}

func (s *Service) DispatchBatch(ctx context.Context, req DispatchRequest) (dispatch.Result, error) {
	if req.Test {
		return s.dispatcher.DispatchTest(ctx, req.TestRecipients, req.Message, req.Relay)
	}
	if !req.SessionID.IsEmpty() {
		if err := checkSessionID(req.SessionID); err != nil {
			return dispatch.Result{}, err
		}
	}
	return s.dispatcher.DispatchSession(ctx, req.SessionID, req.Limit, req.Message, req.Relay)
}

func (s *Service) GetStatus(ctx context.Context, id kernel.SessionID) (status.Snapshot, error) {
	if !id.IsEmpty() {
		if err := checkSessionID(id); err != nil {
			return status.Snapshot{}, err
		}
	}
	return s.aggregator.Get(ctx, id)
}

// ExportLog writes the log under key as CSV. An empty log is LOG_NOT_FOUND
// and nothing is written.
func (s *Service) ExportLog(ctx context.Context, w io.Writer, key kernel.LogKey) error {
	if key.IsEmpty() {
		return mailing.ErrInvalidInput("log key is required")
	}
	entries, err := s.log.Entries(ctx, key)
	if err != nil {
		return mailing.Translate(err)
	}
	if len(entries) == 0 {
		return mailing.ErrLogNotFound().WithDetail("log_key", key.String())
	}
	if err := deliverylog.WriteCSV(w, entries); err != nil {
		return errx.Wrap(err, "failed to write log export", errx.TypeInternal)
	}
	return nil
}

// ExportSessionLog exports the log every batch of a session writes to.
func (s *Service) ExportSessionLog(ctx context.Context, w io.Writer, id kernel.SessionID) error {
	if id.IsEmpty() {
		return mailing.ErrInvalidInput("No sessionId provided")
	}
	if err := checkSessionID(id); err != nil {
		return err
	}
	return s.ExportLog(ctx, w, kernel.SessionLogKey(id))
}

func checkSessionID(id kernel.SessionID) error {
	if !id.Valid() {
		return mailing.ErrInvalidInput("Invalid sessionId").WithDetail("session_id", id.String())
	}
	return nil
}

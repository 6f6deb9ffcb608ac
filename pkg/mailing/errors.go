// Package mailing is the bulk email bounded context. Its subpackages hold the
// session store, the delivery log, the dispatcher, the delivery worker and
// the status aggregator; this package holds the errors they surface to
// callers.
package mailing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
	"github.com/Abraxas-365/bulkmail/pkg/notifx/notifxsmtp"
)

var ErrRegistry = errx.NewRegistry("MAILING")

var (
	CodeInvalidInput     = ErrRegistry.Register("INVALID_INPUT", errx.TypeValidation, http.StatusBadRequest, "Invalid input")
	CodeBatchExhausted   = ErrRegistry.Register("BATCH_EXHAUSTED", errx.TypeBusiness, http.StatusConflict, "No more recipients to send")
	CodeTransportFailure = ErrRegistry.Register("TRANSPORT_FAILURE", errx.TypeExternal, http.StatusBadGateway, "SMTP transport failure")
	CodeStoreUnavailable = ErrRegistry.Register("STORE_UNAVAILABLE", errx.TypeExternal, http.StatusServiceUnavailable, "Store unavailable")
	CodeLogNotFound      = ErrRegistry.Register("LOG_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "No logs found")
)

func ErrInvalidInput(message string) *errx.Error {
	return ErrRegistry.NewWithMessage(CodeInvalidInput, message)
}

func ErrBatchExhausted() *errx.Error { return ErrRegistry.New(CodeBatchExhausted) }

func ErrTransportFailure(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeTransportFailure, cause)
}

func ErrStoreUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStoreUnavailable, cause)
}

func ErrLogNotFound() *errx.Error { return ErrRegistry.New(CodeLogNotFound) }

// Translate maps errors of the session, log and transport packages onto the
// codes callers see. Errors already in this registry, and unknown errors,
// pass through unchanged.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case own(err):
		return err
	case errx.IsCode(err, session.CodeSessionNotFound),
		errx.IsCode(err, session.CodeNoRecipients):
		return ErrInvalidInput("No valid recipients").WithCause(err)
	case errx.IsCode(err, session.CodeSessionExists):
		return ErrInvalidInput("Session already exists").WithCause(err)
	case errx.IsCode(err, session.CodeExhausted):
		return ErrRegistry.NewWithCause(CodeBatchExhausted, err)
	case errx.IsCode(err, session.CodeBusy),
		errx.IsCode(err, session.CodeCursorMoved),
		unavailable(err):
		return ErrStoreUnavailable(err)
	case notifxsmtp.IsTransportError(err):
		return ErrTransportFailure(err)
	}
	return err
}

func own(err error) bool {
	var e *errx.Error
	return errors.As(err, &e) && strings.HasPrefix(e.Code, "MAILING_")
}

// unavailable reports whether any error in the chain is of TypeUnavailable,
// which every store and queue backend uses for lost connections.
func unavailable(err error) bool {
	for err != nil {
		var e *errx.Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errx.TypeUnavailable {
			return true
		}
		err = e.Err
	}
	return false
}

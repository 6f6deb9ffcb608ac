package session

import (
	"net/http"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("SESSION")

var (
	CodeSessionNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Session not found")
	CodeSessionExists   = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Session already exists")
	CodeNoRecipients    = ErrRegistry.Register("NO_RECIPIENTS", errx.TypeValidation, http.StatusBadRequest, "No valid recipients")
	CodeExhausted       = ErrRegistry.Register("EXHAUSTED", errx.TypeBusiness, http.StatusConflict, "No more recipients to send")
	CodeBusy            = ErrRegistry.Register("BUSY", errx.TypeConflict, http.StatusConflict, "Session is being dispatched by another request")
	CodeCursorMoved     = ErrRegistry.Register("CURSOR_MOVED", errx.TypeConflict, http.StatusConflict, "Session cursor changed concurrently")
	CodeUnavailable     = ErrRegistry.Register("UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Session store unavailable")
)

func ErrSessionNotFound() *errx.Error { return ErrRegistry.New(CodeSessionNotFound) }
func ErrSessionExists() *errx.Error   { return ErrRegistry.New(CodeSessionExists) }
func ErrNoRecipients() *errx.Error    { return ErrRegistry.New(CodeNoRecipients) }
func ErrExhausted() *errx.Error       { return ErrRegistry.New(CodeExhausted) }
func ErrBusy() *errx.Error            { return ErrRegistry.New(CodeBusy) }
func ErrCursorMoved() *errx.Error     { return ErrRegistry.New(CodeCursorMoved) }

func ErrUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUnavailable, cause)
}

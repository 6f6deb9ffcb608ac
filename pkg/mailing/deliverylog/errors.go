package deliverylog

import (
	"net/http"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("DELIVERY_LOG")

var (
	CodeInvalidEntry = ErrRegistry.Register("INVALID_ENTRY", errx.TypeValidation, http.StatusBadRequest, "Invalid log entry")
	CodeEmpty        = ErrRegistry.Register("EMPTY", errx.TypeNotFound, http.StatusNotFound, "No logs found")
	CodeUnavailable  = ErrRegistry.Register("UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Delivery log unavailable")
)

func ErrInvalidEntry(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidEntry).WithDetail("reason", reason)
}

func ErrEmpty() *errx.Error { return ErrRegistry.New(CodeEmpty) }

func ErrUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUnavailable, cause)
}

// Validate checks the entry invariants shared by every backend.
func Validate(e Entry) error {
	switch {
	case e.Recipient == "":
		return ErrInvalidEntry("empty recipient")
	case e.Status == StatusSent && e.Error != "":
		return ErrInvalidEntry("sent entry with error")
	case e.Status == StatusFailed && e.Error == "":
		return ErrInvalidEntry("failed entry without error")
	case e.Status != StatusSent && e.Status != StatusFailed:
		return ErrInvalidEntry("unknown status")
	case e.Time.IsZero():
		return ErrInvalidEntry("missing time")
	}
	return nil
}

package notifx

import "github.com/Abraxas-365/bulkmail/pkg/errx"

var notifxErrors = errx.NewRegistry("NOTIFX")

var (
	ErrSendFailed     = notifxErrors.Register("SEND_FAILED", errx.TypeExternal, 502, "Failed to send email")
	ErrInvalidMessage = notifxErrors.Register("INVALID_MESSAGE", errx.TypeValidation, 400, "Invalid email message")
	ErrInvalidRelay   = notifxErrors.Register("INVALID_RELAY", errx.TypeValidation, 400, "Invalid SMTP relay")
)

package notifxsmtp

import "github.com/Abraxas-365/bulkmail/pkg/errx"

var smtpErrors = errx.NewRegistry("NOTIFX_SMTP")

var (
	ErrDial      = smtpErrors.Register("DIAL", errx.TypeExternal, 502, "Could not connect to SMTP server")
	ErrHandshake = smtpErrors.Register("HANDSHAKE", errx.TypeExternal, 502, "SMTP handshake failed")
	ErrAuth      = smtpErrors.Register("AUTH", errx.TypeExternal, 502, "SMTP authentication failed")
	ErrDeliver   = smtpErrors.Register("DELIVER", errx.TypeExternal, 502, "SMTP server rejected the message")
	ErrCompose   = smtpErrors.Register("COMPOSE", errx.TypeInternal, 500, "Failed to compose message")
)

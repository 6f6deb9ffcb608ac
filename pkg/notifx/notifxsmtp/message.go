package notifxsmtp

import (
	"bytes"

	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"gopkg.in/gomail.v2"
)

// compose renders msg as an RFC 5322 message.
func compose(msg notifx.EmailMessage) ([]byte, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}

	if msg.IsHTML() {
		m.SetBody("text/html", msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternative("text/plain", msg.TextBody)
		}
	} else {
		m.SetBody("text/plain", msg.TextBody)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, smtpErrors.NewWithCause(ErrCompose, err)
	}
	return buf.Bytes(), nil
}

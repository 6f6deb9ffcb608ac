package notifxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// ConsoleProvider prints emails via logx instead of contacting the relay.
// Intended for development and testing.
type ConsoleProvider struct{}

// NewConsoleProvider creates a new console email provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// SendVia logs the email details and reports success.
func (p *ConsoleProvider) SendVia(_ context.Context, relay notifx.Relay, msg notifx.EmailMessage) (notifx.SendResult, error) {
	to := strings.Join(msg.To, ", ")
	logx.WithFields(logx.Fields{
		"relay":   relay.Address(),
		"from":    msg.From,
		"to":      to,
		"subject": msg.Subject,
		"html":    msg.IsHTML(),
	}).Info("notifx/console: email sent (dev mode)")

	if msg.IsHTML() {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	} else {
		logx.Debugf("notifx/console: text body:\n%s", msg.TextBody)
	}

	return notifx.SendResult{To: to, Success: true, Via: "console"}, nil
}

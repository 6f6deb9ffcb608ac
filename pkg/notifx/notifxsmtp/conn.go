package notifxsmtp

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// session is one SMTP connection opened with a single tier.
type session struct {
	conn   net.Conn
	client *smtp.Client
	socket time.Duration
	stop   func() bool
}

// extend pushes the I/O deadline out by one socket timeout.
func (s *session) extend() {
	_ = s.conn.SetDeadline(time.Now().Add(s.socket))
}

func (s *session) close() {
	s.stop()
	if s.client != nil {
		_ = s.client.Close()
		return
	}
	_ = s.conn.Close()
}

// open dials relay, reads the greeting, says hello, upgrades and
// authenticates as the tier allows. Each step runs under its own deadline
// and cancelling ctx aborts whichever step is in progress.
func (c *Cascade) open(ctx context.Context, relay notifx.Relay, tier Tier) (*session, error) {
	dialer := &net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", relay.Address())
	if err != nil {
		return nil, smtpErrors.NewWithCause(ErrDial, err).
			WithDetail("tier", tier.Name).
			WithDetail("addr", relay.Address())
	}

	s := &session{
		conn:   conn,
		socket: c.opts.SocketTimeout,
		stop: context.AfterFunc(ctx, func() {
			_ = conn.SetDeadline(time.Now())
		}),
	}

	fail := func(code *errx.ErrorCode, cause error) (*session, error) {
		s.close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = ctxErr
		}
		return nil, smtpErrors.NewWithCause(code, cause).WithDetail("tier", tier.Name)
	}

	_ = conn.SetDeadline(time.Now().Add(c.opts.GreetingTimeout))
	var wire net.Conn = conn
	if tier.ImplicitTLS {
		tlsConn := tls.Client(conn, tier.tlsConfig(relay.Host))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fail(ErrHandshake, err)
		}
		wire = tlsConn
	}

	client, err := smtp.NewClient(wire, relay.Host)
	if err != nil {
		return fail(ErrHandshake, err)
	}
	s.client = client

	s.extend()
	if err := client.Hello(c.opts.HeloName); err != nil {
		return fail(ErrHandshake, err)
	}

	if tier.StartTLS && !tier.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			s.extend()
			if err := client.StartTLS(tier.tlsConfig(relay.Host)); err != nil {
				return fail(ErrHandshake, err)
			}
		}
	}

	if relay.Username != "" {
		if ok, mechs := client.Extension("AUTH"); ok {
			s.extend()
			auth := pickAuth(tier, relay.Host, mechs, relay.Username, relay.Password)
			if err := client.Auth(auth); err != nil {
				return fail(ErrAuth, err)
			}
		}
	}

	return s, nil
}

// deliver runs one mail transaction on an open session.
func (s *session) deliver(from string, to []string, body []byte) error {
	s.extend()
	if err := s.client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := s.client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	s.extend()
	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	s.extend()
	return s.client.Quit()
}

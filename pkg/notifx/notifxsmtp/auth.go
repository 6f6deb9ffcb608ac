package notifxsmtp

import (
	"errors"
	"net/smtp"
	"strings"
)

// plainAuth implements PLAIN without the TLS requirement of smtp.PlainAuth.
// Relays on private networks often accept credentials in the clear.
type plainAuth struct {
	user, pass string
}

func (a *plainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.user + "\x00" + a.pass), nil
}

func (a *plainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

// loginAuth implements the LOGIN mechanism for servers that do not offer PLAIN.
type loginAuth struct {
	user, pass string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	prompt := strings.ToLower(strings.TrimSpace(string(fromServer)))
	switch {
	case strings.HasPrefix(prompt, "username"):
		return []byte(a.user), nil
	case strings.HasPrefix(prompt, "password"):
		return []byte(a.pass), nil
	default:
		return nil, errors.New("unexpected LOGIN challenge: " + prompt)
	}
}

// pickAuth chooses a mechanism from the server's AUTH advertisement.
func pickAuth(tier Tier, host, advertised, user, pass string) smtp.Auth {
	mechs := strings.Fields(strings.ToUpper(advertised))
	has := func(name string) bool {
		for _, m := range mechs {
			if m == name {
				return true
			}
		}
		return false
	}

	switch {
	case has("LOGIN") && !has("PLAIN"):
		return &loginAuth{user: user, pass: pass}
	case has("CRAM-MD5") && !has("PLAIN"):
		return smtp.CRAMMD5Auth(user, pass)
	case tier.GuardedAuth:
		return smtp.PlainAuth("", user, pass, host)
	default:
		return &plainAuth{user: user, pass: pass}
	}
}

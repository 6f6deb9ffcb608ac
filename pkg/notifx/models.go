package notifx

import (
	"net/mail"
	"strconv"
)

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`
}

// IsHTML reports whether the message carries an HTML body.
func (m EmailMessage) IsHTML() bool { return m.HTMLBody != "" }

// Envelope returns the bare sender address used for MAIL FROM.
func (m EmailMessage) Envelope() (string, error) {
	addr, err := mail.ParseAddress(m.From)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

// FormatAddress renders "Name <email>", or the bare address without a name.
func FormatAddress(name, email string) string {
	if name == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}

// Relay identifies the SMTP server a message is submitted to. It travels
// with each message and is never stored outside the job that carries it.
type Relay struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Secure   bool   `json:"secure,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Address returns host:port
func (r Relay) Address() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// SendResult represents the outcome of a single email send attempt.
type SendResult struct {
	To      string `json:"to"`
	Success bool   `json:"success"`
	Via     string `json:"via,omitempty"`
	Error   string `json:"error,omitempty"`
}

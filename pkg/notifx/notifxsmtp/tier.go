package notifxsmtp

import (
	"crypto/tls"

	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// Tier is one transport-security configuration tried against a relay.
type Tier struct {
	Name string
	// ImplicitTLS wraps the connection in TLS before the greeting (SMTPS).
	ImplicitTLS bool
	// StartTLS upgrades the connection when the server offers it. A failed
	// upgrade fails the tier.
	StartTLS           bool
	InsecureSkipVerify bool
	MinVersion         uint16
	// GuardedAuth refuses to send PLAIN credentials over an unencrypted
	// connection to a non-local host.
	GuardedAuth bool
}

// Tier names
const (
	TierStrict    = "strict"
	TierRelaxed   = "relaxed"
	TierPlaintext = "plaintext"
)

// Tiers returns the cascade for relay, most secure first. The last tier is
// the one used when nothing verifies.
func Tiers(relay notifx.Relay) []Tier {
	implicit := relay.Secure || relay.Port == 465
	return []Tier{
		{
			Name:        TierStrict,
			ImplicitTLS: implicit,
			StartTLS:    true,
			MinVersion:  tls.VersionTLS12,
			GuardedAuth: true,
		},
		{
			Name:               TierRelaxed,
			ImplicitTLS:        implicit,
			StartTLS:           true,
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
		},
		{
			Name: TierPlaintext,
		},
	}
}

func (t Tier) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: t.InsecureSkipVerify,
		MinVersion:         t.MinVersion,
	}
}

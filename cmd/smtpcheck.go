package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"github.com/Abraxas-365/bulkmail/pkg/notifx/notifxsmtp"
)

// runSMTPCheck verifies every cascade tier against a relay and prints the
// result of each, then sends a message when -to is given.
//
//	bulkmail smtp-check -host smtp.example.com -port 587 -user u -pass p
func runSMTPCheck(args []string) int {
	fs := flag.NewFlagSet("smtp-check", flag.ContinueOnError)
	host := fs.String("host", "", "SMTP host")
	port := fs.Int("port", 587, "SMTP port")
	secure := fs.Bool("secure", false, "Use implicit TLS (default for port 465)")
	user := fs.String("user", "", "SMTP username")
	pass := fs.String("pass", "", "SMTP password")
	from := fs.String("from", "", "Sender address for the test message")
	to := fs.String("to", "", "Send a test message to this address after probing")
	timeout := fs.Duration("timeout", 30*time.Second, "Per-stage timeout")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *host == "" {
		fs.PrintDefaults()
		return 2
	}

	relay := notifx.Relay{
		Host:     *host,
		Port:     *port,
		Secure:   *secure || *port == 465,
		Username: *user,
		Password: *pass,
	}
	cascade := notifxsmtp.New(
		notifxsmtp.WithDialTimeout(*timeout),
		notifxsmtp.WithGreetingTimeout(*timeout),
		notifxsmtp.WithSocketTimeout(*timeout),
	)

	ctx := context.Background()
	probes := cascade.Probe(ctx, relay)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(probes)
	} else {
		for _, p := range probes {
			if p.OK {
				fmt.Printf("✅ %-10s ok (%s)\n", p.Tier, p.Duration.Round(time.Millisecond))
			} else {
				fmt.Printf("❌ %-10s %s\n", p.Tier, p.Error)
			}
		}
	}

	if *to == "" {
		for _, p := range probes {
			if p.OK {
				return 0
			}
		}
		return 1
	}

	sender := *from
	if sender == "" {
		sender = *user
	}
	res, err := cascade.SendVia(ctx, relay, notifx.EmailMessage{
		From:     sender,
		To:       []string{*to},
		Subject:  "bulkmail SMTP check",
		TextBody: "This is a test message sent by bulkmail smtp-check.",
	})
	if err != nil {
		fmt.Printf("❌ send via %s failed: %v\n", res.Via, err)
		return 1
	}
	fmt.Printf("✅ sent to %s via %s\n", *to, res.Via)
	return 0
}

// Package recipients turns raw address lists into the validated, ordered
// recipient sequences stored in a session.
package recipients

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether addr looks like local@domain.tld.
func Valid(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Filter trims every address and keeps the valid ones in their input
// order. Duplicates are kept.
func Filter(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if Valid(a) {
			out = append(out, a)
		}
	}
	return out
}

// SplitList parses a comma separated list such as "a@x.com, b@x.com".
func SplitList(raw string) []string {
	return Filter(strings.Split(raw, ","))
}

package inbound

import (
	"net/mail"
	"regexp"
	"strings"
)

var bareAddress = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// ParseAddress extracts the lowercased mailbox and display name from a From
// value such as `Jane <jane@x.com>`. Malformed headers fall back to the first
// address-looking token.
func ParseAddress(from string) (address, name string, ok bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", "", false
	}
	if parsed, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(parsed.Address), strings.TrimSpace(parsed.Name), true
	}
	if match := bareAddress.FindString(from); match != "" {
		return strings.ToLower(match), "", true
	}
	return "", "", false
}

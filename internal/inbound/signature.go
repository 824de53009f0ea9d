package inbound

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeaders are the header names providers use for the shared secret.
var SignatureHeaders = []string{
	"X-Webhook-Signature",
	"X-Webhook-Secret",
	"X-Inbound-Signature",
}

// VerifySignature checks a webhook request against the shared secret. A
// header value is accepted if it equals the secret or the hex HMAC-SHA256 of
// body (optionally prefixed "sha256="). An empty secret disables the check.
func VerifySignature(secret string, body []byte, header func(name string) string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	for _, name := range SignatureHeaders {
		value := strings.TrimSpace(header(name))
		if value == "" {
			continue
		}
		if constantTimeEqual(value, secret) {
			return true
		}
		digest := strings.ToLower(strings.TrimPrefix(value, "sha256="))
		if constantTimeEqual(digest, expectedMAC) {
			return true
		}
	}
	return false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

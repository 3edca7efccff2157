package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// plainKeys are emitted verbatim by MaskField.
var plainKeys = map[string]bool{
	"component":  true,
	"error":      true,
	"height":     true,
	"lane":       true,
	"method":     true,
	"module":     true,
	"nonce":      true,
	"request_id": true,
	"root":       true,
}

// MaskField returns key with its value replaced by RedactedValue. Empty values
// and well-known non-secret keys pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || plainKeys[strings.ToLower(strings.TrimSpace(key))] {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN hides the password of a URL-style connection string and keeps the
// rest readable. Passwords render as url.URL.Redacted does. Key/value DSNs
// are masked whole.
func MaskDSN(key, dsn string) slog.Attr {
	trimmed := strings.TrimSpace(dsn)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		if strings.Contains(trimmed, "=") {
			return MaskField(key, dsn)
		}
		return slog.String(key, dsn)
	}
	q := parsed.Query()
	for name := range q {
		if strings.Contains(strings.ToLower(name), "password") {
			q.Set(name, "xxxxx")
		}
	}
	parsed.RawQuery = q.Encode()
	return slog.String(key, parsed.Redacted())
}

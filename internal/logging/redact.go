package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of every sensitive attribute.
const Redacted = "<redacted>"

var sensitiveKeys = map[string]struct{}{
	"master_password": {},
	"password":        {},
	"password_clear":  {},
	"new_password":    {},
	"old_password":    {},
	"derived_key":     {},
	"vault_key":       {},
	"secret":          {},
	"code":            {},
	"otp":             {},
	"auth_token":      {},
	"grant":           {},
}

// IsSensitive reports whether an attribute named key is always redacted.
// Matching ignores case.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// RedactAttr is a slog.HandlerOptions.ReplaceAttr hook that blanks sensitive
// attributes, including ones nested in groups.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

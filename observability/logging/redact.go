package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces the value of a sensitive log field.
const RedactedValue = "[REDACTED]"

// Beneficiaries are vulnerable people; their identifiers and the evidence
// attached to their purchases never reach the logs in clear.
var sensitiveKeys = map[string]struct{}{
	"beneficiary":   {},
	"proof_hash":    {},
	"proofhash":     {},
	"document_hash": {},
	"documenthash":  {},
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// SensitiveKeys returns the masked keys in sorted order.
func SensitiveKeys() []string {
	keys := make([]string, 0, len(sensitiveKeys))
	for key := range sensitiveKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Redact masks attr when its key is sensitive. Empty values are left alone.
func Redact(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}

package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

// RedactionMarker replaces any value recognized as sensitive.
const RedactionMarker = "[REDACTED]"

var (
	// bearer or basic credentials embedded in header-shaped strings
	authSchemePattern = regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9\-._~+/=]+`)

	// three dot-separated base64url segments, the JWT wire shape
	jwtPattern = regexp.MustCompile(`\b[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`)

	// long unbroken base64/hex runs that look like keys or secrets
	secretShapedPattern = regexp.MustCompile(`\b[A-Za-z0-9+/_\-]{32,}={0,2}\b`)
)

// sensitive key substrings: a field whose name matches is redacted whole
var sensitiveKeys = []string{
	"password", "secret", "token", "api_key", "apikey",
	"authorization", "cookie", "csrf", "private_key", "otp",
}

// SensitiveKey reports whether a field name denotes a value that must never
// be persisted raw.
func SensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactSensitive scrubs credential-shaped substrings from a value. The
// value itself survives; only the recognized substrings are replaced.
func RedactSensitive(value string) string {
	value = authSchemePattern.ReplaceAllString(value, RedactionMarker)
	value = jwtPattern.ReplaceAllString(value, RedactionMarker)
	value = secretShapedPattern.ReplaceAllString(value, RedactionMarker)
	return value
}

// RedactDetails sanitizes a detail map for audit persistence. Fields with
// sensitive names are replaced wholesale; remaining values are scrubbed for
// credential-shaped substrings. Redaction never fails: a field that cannot
// be sanitized is dropped rather than leaked.
func RedactDetails(details map[string]string) map[string]string {
	if details == nil {
		return nil
	}

	out := make(map[string]string, len(details))
	for key, value := range details {
		if SensitiveKey(key) {
			out[key] = RedactionMarker
			continue
		}
		func() {
			defer func() {
				// A panicking regexp engine or corrupted value drops the
				// field instead of persisting it raw.
				_ = recover()
			}()
			out[key] = RedactSensitive(value)
		}()
	}
	return out
}

// SensitiveQueryString reports whether a raw query string carries a
// parameter that must not be logged.
func SensitiveQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key := pair
		if idx := strings.Index(pair, "="); idx >= 0 {
			key = pair[:idx]
		}
		if SensitiveKey(key) {
			return true
		}
	}
	return false
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, RedactionMarker)
	}
	return slog.String(key, value)
}

// Package redact scrubs sensitive material from strings before they are
// logged or returned in error responses. Provider errors in particular can
// echo API keys or request URLs; everything that crosses the logging or HTTP
// boundary goes through here first.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

var (
	// Connection strings with inline credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)

	// Provider API keys: OpenAI-style sk- keys, Anthropic sk-ant- keys, and
	// generic key=value credential assignments.
	providerKeyRegex = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}`)
	apiKeyRegex      = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|bearer)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)

	// JWTs: three base64url segments starting with the JSON header marker.
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
)

// String returns s with credentials, API keys and tokens replaced by
// placeholders.
func String(s string) string {
	s = dbConnRegex.ReplaceAllString(s, "${1}://"+RedactedCredentialPlaceholder+"@")
	s = providerKeyRegex.ReplaceAllString(s, RedactedKeyPlaceholder)
	s = apiKeyRegex.ReplaceAllString(s, "${1}${2}"+RedactedKeyPlaceholder)
	s = jwtTokenRegex.ReplaceAllString(s, "[REDACTED_JWT]")
	return s
}

// Error returns the redacted message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

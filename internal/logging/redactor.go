package logging

import "strings"

// sensitiveKeywords mirrors the header-redaction keyword list, generalized
// from HTTP header names to JSON field names found on a decoded queue
// payload (job options, user-supplied URLs never carry these, but a
// misconfigured producer might).
var sensitiveKeywords = []string{
	"authorization", "token", "key", "secret", "password", "credential", "apikey", "api_key",
}

// PayloadRedactor redacts sensitive-looking fields before a queue payload
// touches a log line. Queue payloads are untrusted input: this guards
// against a producer accidentally embedding credentials in job options.
type PayloadRedactor struct {
	keywords []string
}

// NewPayloadRedactor constructs a PayloadRedactor using the default keyword
// list.
func NewPayloadRedactor() *PayloadRedactor {
	return &PayloadRedactor{keywords: sensitiveKeywords}
}

// IsSensitiveField reports whether name looks like it carries a secret.
func (r *PayloadRedactor) IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RedactValue redacts value if name looks sensitive, keeping a short
// prefix/suffix for long values so logs stay useful for correlation without
// exposing the secret.
func (r *PayloadRedactor) RedactValue(name, value string) string {
	if !r.IsSensitiveField(name) {
		return value
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// RedactFields redacts every value in fields whose key looks sensitive,
// returning a new map safe to attach to a log event.
func (r *PayloadRedactor) RedactFields(fields map[string]string) map[string]string {
	redacted := make(map[string]string, len(fields))
	for k, v := range fields {
		redacted[k] = r.RedactValue(k, v)
	}
	return redacted
}

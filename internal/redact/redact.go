// Package redact strips credentials, connection strings, tokens and SQL from
// text before it is logged. Error responses never carry raw error text; logs
// carry the redacted form.
package redact

import "regexp"

// Placeholders substituted for redacted fragments
const (
	RedactedCredential = "[REDACTED_CREDENTIAL]"
	RedactedKey        = "[REDACTED_KEY]"
	RedactedJWT        = "[REDACTED_JWT]"
	RedactedEmail      = "[REDACTED_EMAIL]"
	RedactedSQL        = "[REDACTED_SQL]"
	RedactedPath       = "[REDACTED_PATH]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Order matters: connection strings go before emails, since "user:pw@host"
// would otherwise be half-matched as an address.
var rules = []rule{
	{regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb)://[^\s@]+@[^\s/]+`), RedactedCredential},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWT},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+`), RedactedCredential},
	{regexp.MustCompile(`(?i)(secret|token|api[_-]?key)\s*[=:]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}`), RedactedKey},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmail},
	{regexp.MustCompile(`\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\S]*?\b(FROM|INTO|SET|WHERE)\b[^;:]*`), RedactedSQL},
	{regexp.MustCompile(`(/[\w.-]+){3,}`), RedactedPath},
}

// String redacts sensitive fragments from s.
func String(s string) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts err.Error(). A nil error gives "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// SensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs
var SensitiveDataPatterns = []*regexp.Regexp{
	// Bearer and JWT tokens
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)(eyJ[a-zA-Z0-9_-]{5,}\.eyJ[a-zA-Z0-9_-]{5,})\.[a-zA-Z0-9_-]{5,}`),

	// API keys, tokens and secrets
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
}

// SensitiveKeywords mark field keys whose string values are always redacted
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key", "apikey", "authorization",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for _, pattern := range SensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "$1"+redacted)
	}

	return input
}

// redactField hides string values of credential-like keys and scrubs
// tokens embedded in error messages.
func redactField(f Field) Field {
	s, ok := f.Value.(string)
	if !ok || s == "" {
		return f
	}

	keyLower := strings.ToLower(f.Key)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(keyLower, kw) {
			return Field{Key: f.Key, Value: redacted}
		}
	}

	if f.Key == errorKey {
		return Field{Key: f.Key, Value: RedactSensitiveData(s)}
	}
	return f
}

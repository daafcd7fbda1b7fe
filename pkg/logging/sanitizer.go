package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxErrorLength bounds error messages stored on job records.
	MaxErrorLength = 500
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens in echoed request headers
	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.=]+`)

	// key=value style API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key|key)[=:]\s*[A-Za-z0-9\-_]{20,}`)

	// Provider key formats that show up verbatim in some error bodies:
	// Anthropic/OpenAI "sk-..." and Google "AIza..." keys.
	providerKeyPattern = regexp.MustCompile(`\b(sk-[A-Za-z0-9\-_]{16,}|AIza[0-9A-Za-z\-_]{30,})`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString removes sensitive data from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError renders err with credentials removed and the length capped.
// Use this before persisting or returning any provider or database error.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeMessage(err.Error())
}

// SanitizeMessage is SanitizeError for an already rendered message.
func SanitizeMessage(msg string) string {
	sanitized := passwordPattern.ReplaceAllString(msg, "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return TruncateString(sanitized, MaxErrorLength)
}

// TruncateString truncates s to at most maxLen runes and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

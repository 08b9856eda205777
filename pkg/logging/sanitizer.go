package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx, client_secret=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass|client_secret)=[^;&\s]+`)

	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// user:pass@host in URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s?]+`)

	// user:pass@tcp(host) in go-sql-driver/mysql DSNs
	mysqlDSNPattern = regexp.MustCompile(`[^:/\s]+:[^@\s]*@(tcp|unix)\(`)
)

// sensitiveKeyParts mark connection field names whose values are never logged.
var sensitiveKeyParts = []string{"password", "secret", "token", "key"}

// SanitizeConnectionString removes credentials from a connection string or DSN.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = mysqlDSNPattern.ReplaceAllString(sanitized, RedactedText+"@${1}(")
	return sanitized
}

// SanitizeError sanitizes error text that might embed a connection string or token.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := SanitizeConnectionString(err.Error())
	return jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
}

// SanitizeQuery truncates a SQL query for logging and masks inline credentials.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := strings.TrimSpace(query)
	if len(sanitized) > MaxQueryLogLength {
		sanitized = sanitized[:MaxQueryLogLength] + "..."
	}
	return passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// IsSensitiveKey reports whether a connection field name holds a secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// RedactConfig returns a copy of a connection's attributes with secret values
// replaced, suitable for debug logging. Empty secrets stay empty.
func RedactConfig(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if IsSensitiveKey(k) {
			if s, ok := v.(string); ok && s == "" {
				out[k] = ""
				continue
			}
			out[k] = RedactedText
			continue
		}
		out[k] = v
	}
	return out
}

package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveValuePatterns match credentials embedded in free-form strings,
// such as broker URLs with userinfo.
var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://)[^@/\s]+@`),
	regexp.MustCompile(`(?i)((password|passwd|token|secret|api[_-]?key)[\s:=]+)([^;,\s]{3,})`),
}

// sensitiveKeywords mark field keys whose values are never logged verbatim
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "credential", "api_key", "apikey", "dsn",
}

// RedactSensitiveData replaces credentials in a free-form string
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	input = sensitiveValuePatterns[0].ReplaceAllString(input, "$1"+redacted+"@")
	return sensitiveValuePatterns[1].ReplaceAllString(input, "$1"+redacted)
}

// isSensitiveKey reports whether a field key names a secret
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// URLMaskLength is how many characters of a URL stay readable.
	URLMaskLength = 30
	// DefaultMaskLength is how many mask characters to show.
	DefaultMaskLength = 3
)

// SensitiveFields are attribute names whose values never reach the log.
// Webhook URLs embed their secret in the path, so "webhook_url" is covered by "url".
var SensitiveFields = map[string]bool{
	"token":         true,
	"secret":        true,
	"password":      true,
	"api_key":       true,
	"authorization": true,
	"url":           true,
}

var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

// MaskURL keeps the first URLMaskLength characters of a URL.
func MaskURL(url string) string {
	if len(url) <= URLMaskLength {
		return url
	}
	return url[:URLMaskLength] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// MaskValue masks a sensitive value completely.
func MaskValue(value string) string {
	if value == "" {
		return ""
	}
	return strings.Repeat(MaskChar, min(len(value), 8))
}

// IsSensitiveField reports whether fieldName names sensitive data.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	if SensitiveFields[lower] {
		return true
	}
	for keyword := range SensitiveFields {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// SanitizeLogMessage masks non-local URLs in msg. HTTP client errors quote
// the request URL, which for webhooks carries the secret.
func SanitizeLogMessage(msg string) string {
	return urlPattern.ReplaceAllStringFunc(msg, func(url string) string {
		if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") {
			return url
		}
		return MaskURL(url)
	})
}

// maskAttr hides sensitive attribute values on every handler Init installs.
// URLs keep their readable prefix.
func maskAttr(_ []string, a slog.Attr) slog.Attr {
	if !IsSensitiveField(a.Key) {
		return a
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindString {
		return slog.String(a.Key, strings.Repeat(MaskChar, 8))
	}
	s := v.String()
	if strings.HasPrefix(s, "http") {
		return slog.String(a.Key, MaskURL(s))
	}
	return slog.String(a.Key, MaskValue(s))
}

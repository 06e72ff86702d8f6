package logger

import (
	"regexp"
	"strings"
)

var secretKeys = []string{"password", "secret", "token", "api_key", "apikey", "access_key"}

// dsnPassword matches the password part of postgres:// and redis:// URLs.
var dsnPassword = regexp.MustCompile(`(://[^:/@\s]*:)[^@\s]+@`)

// libpqPassword matches password=... in key/value connection strings.
var libpqPassword = regexp.MustCompile(`(password=)\S+`)

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			return RedactSecret(val)
		}
	}
	return RedactDSN(val)
}

// RedactSecret masks a credential, keeping a short prefix for correlation.
// "sk_live_abcdef" → "sk***"
func RedactSecret(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***"
}

// RedactDSN hides passwords embedded in connection strings.
// "postgres://app:hunter2@db:5432/x" → "postgres://app:***@db:5432/x"
func RedactDSN(s string) string {
	s = dsnPassword.ReplaceAllString(s, "${1}***@")
	return libpqPassword.ReplaceAllString(s, "${1}***")
}

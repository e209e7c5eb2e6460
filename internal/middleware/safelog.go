package middleware

import "strings"

// MaskSessionID shortens a session id for log lines.
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}

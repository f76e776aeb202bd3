package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging.
// "jon.doe@example.com" → "jo***@example.com"; local parts of two
// characters or fewer are fully masked.
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactSSN masks a national ID, keeping only the leading two digits so
// entries remain distinguishable by birth date decade in debugging.
func RedactSSN(ssn string) string {
	if len(ssn) <= 2 {
		return "**"
	}
	return ssn[:2] + strings.Repeat("*", len(ssn)-2)
}

// Package logger provides structured JSON logging with redaction of
// personal data. Members are identified by national ID and email, both
// of which must never reach log output in the clear.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger writes structured JSON entries with optional PII redaction.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	redact bool
}

// New creates a logger writing to out at the given minimum level.
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, redact: true}
}

var defaultLogger = New(os.Stderr, INFO)

// SetLevel sets the minimum level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII toggles PII redaction on the default logger.
func SetRedactPII(r bool) { defaultLogger.redact = r }

// Debug emits a DEBUG-level entry on the default logger.
func Debug(msg string, fields ...interface{}) { defaultLogger.Log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry on the default logger.
func Info(msg string, fields ...interface{}) { defaultLogger.Log(INFO, msg, fields...) }

// Warn emits a WARN-level entry on the default logger.
func Warn(msg string, fields ...interface{}) { defaultLogger.Log(WARN, msg, fields...) }

// Error emits an ERROR-level entry on the default logger.
func Error(msg string, fields ...interface{}) { defaultLogger.Log(ERROR, msg, fields...) }

// Log emits one entry. Fields are alternating key/value pairs.
func (l *Logger) Log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redact {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}

func redactValue(key, val string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "email") || strings.Contains(k, "recipient"):
		return RedactEmail(val)
	case strings.Contains(k, "ssn") || strings.Contains(k, "national"):
		return RedactSSN(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}

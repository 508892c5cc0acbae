package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// ConsoleLogger writes human-readable lines to a terminal
type ConsoleLogger struct {
	mu               *sync.Mutex
	writer           io.Writer
	level            LogLevel
	traceID          string
	fields           []Field
	colorEnabled     bool
	timestampEnabled bool
	redactSensitive  bool
}

// ConsoleLoggerConfig contains configuration for console logger
type ConsoleLoggerConfig struct {
	Writer           io.Writer
	Level            LogLevel
	ColorEnabled     bool
	TimestampEnabled bool
	RedactSensitive  bool
}

// NewConsoleLogger creates a console logger; Writer defaults to stderr
func NewConsoleLogger(config ConsoleLoggerConfig) *ConsoleLogger {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	return &ConsoleLogger{
		mu:               &sync.Mutex{},
		writer:           config.Writer,
		level:            config.Level,
		colorEnabled:     config.ColorEnabled,
		timestampEnabled: config.TimestampEnabled,
		redactSensitive:  config.RedactSensitive,
	}
}

var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(access_token|refresh_token|id_token)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(?i)authorization["']?\s*[:=]\s*["']?[^\s"']+`), "Authorization: [REDACTED]"},
	// service-account JSON keys
	{regexp.MustCompile(`"private_key"\s*:\s*"[^"]*"`), `"private_key":"[REDACTED]"`},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED PRIVATE KEY]"},
	// AWS static credentials and presigned URLs
	{regexp.MustCompile(`(?i)(aws_secret_access_key|secret_?key)["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]+`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(X-Amz-Signature|X-Goog-Signature)=[0-9a-fA-F]+`), "$1=[REDACTED]"},
}

// RedactSensitive masks credentials that may leak into log text
func RedactSensitive(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

func (l *ConsoleLogger) paint(sb *strings.Builder, color, text string) {
	if l.colorEnabled {
		sb.WriteString(color)
		sb.WriteString(text)
		sb.WriteString(colorReset)
		return
	}
	sb.WriteString(text)
}

func levelColor(level LogLevel) string {
	switch level {
	case DEBUG:
		return colorBlue
	case WARN:
		return colorYellow
	case ERROR:
		return colorRed
	}
	return colorReset
}

func (l *ConsoleLogger) formatMessage(level LogLevel, msg string, fields []Field) string {
	var sb strings.Builder

	if l.timestampEnabled {
		l.paint(&sb, colorGray, time.Now().Format("2006-01-02 15:04:05"))
		sb.WriteString(" ")
	}

	l.paint(&sb, levelColor(level), fmt.Sprintf("%-5s", level.String()))
	sb.WriteString(" ")

	if l.traceID != "" {
		short := l.traceID
		if len(short) > 8 {
			short = short[:8]
		}
		l.paint(&sb, colorGray, "["+short+"] ")
	}

	if l.redactSensitive {
		msg = RedactSensitive(msg)
	}
	sb.WriteString(msg)

	all := mergeFields(l.fields, fields)
	for i, field := range all {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		value := fmt.Sprintf("%v", field.Value)
		if l.redactSensitive {
			value = RedactSensitive(value)
		}
		sb.WriteString(field.Key)
		sb.WriteString("=")
		sb.WriteString(value)
	}

	return sb.String()
}

func (l *ConsoleLogger) log(level LogLevel, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	_, _ = fmt.Fprintln(l.writer, l.formatMessage(level, msg, fields))
}

func (l *ConsoleLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *ConsoleLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *ConsoleLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *ConsoleLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

func (l *ConsoleLogger) clone() *ConsoleLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *l
	c.fields = append([]Field(nil), l.fields...)
	return &c
}

// With returns a logger that prefixes fields onto every line
func (l *ConsoleLogger) With(fields ...Field) Logger {
	c := l.clone()
	c.fields = append(c.fields, fields...)
	return c
}

// WithTraceID returns a new logger with the trace ID set
func (l *ConsoleLogger) WithTraceID(traceID string) Logger {
	c := l.clone()
	c.traceID = traceID
	return c
}

// WithContext returns a new logger that extracts trace ID from context
func (l *ConsoleLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

func (l *ConsoleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close is a no-op; the writer is owned by the caller
func (l *ConsoleLogger) Close() error {
	return nil
}

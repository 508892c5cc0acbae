package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LogLevel is the minimum severity a logger emits
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	QUIET
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case QUIET:
		return "QUIET"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps config log levels (quiet, normal, verbose, debug) and
// plain level names onto a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet":
		return QUIET, nil
	case "error":
		return ERROR, nil
	case "warn", "warning":
		return WARN, nil
	case "normal", "info", "":
		return INFO, nil
	case "verbose", "debug":
		return DEBUG, nil
	}
	return INFO, fmt.Errorf("unknown log level: %s", s)
}

// Field is a structured key/value attached to a log line
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// LogEntry is the JSON shape written by FileLogger
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"traceId,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is the logging surface used across the module
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a logger that prepends fields to every entry
	With(fields ...Field) Logger
	WithTraceID(traceID string) Logger
	WithContext(ctx context.Context) Logger
	SetLevel(level LogLevel)
	Close() error
}

// LogConfig configures NewLogger
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	EnableConsole   bool
	EnableDebug     bool
	RedactSensitive bool
	EnableColor     bool
	EnableTimestamp bool
	MaxFileSize     int64
	MaxBackups      int
}

// DefaultLogConfig returns console logging at INFO with redaction on
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		EnableConsole:   true,
		RedactSensitive: true,
		EnableColor:     true,
		EnableTimestamp: true,
		MaxFileSize:     100 * 1024 * 1024,
		MaxBackups:      5,
	}
}

// NewLogger builds a console logger, a file logger, both, or a no-op logger
func NewLogger(config LogConfig) (Logger, error) {
	var loggers []Logger

	if config.EnableConsole {
		loggers = append(loggers, NewConsoleLogger(ConsoleLoggerConfig{
			Level:            config.Level,
			ColorEnabled:     config.EnableColor,
			TimestampEnabled: config.EnableTimestamp,
			RedactSensitive:  config.RedactSensitive,
		}))
	}

	if config.OutputFile != "" {
		fileLogger, err := NewFileLogger(FileLoggerConfig{
			FilePath:        config.OutputFile,
			Level:           config.Level,
			MaxFileSize:     config.MaxFileSize,
			MaxBackups:      config.MaxBackups,
			RotateEnabled:   config.MaxFileSize > 0,
			RedactSensitive: config.RedactSensitive,
		})
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fileLogger)
	}

	switch len(loggers) {
	case 0:
		return NewNoOpLogger(), nil
	case 1:
		return loggers[0], nil
	}
	return NewMultiLogger(loggers...), nil
}

// NewDebugLoggerWithTransport returns the logger plus an HTTP transport that
// logs every backend request when EnableDebug is set
func NewDebugLoggerWithTransport(config LogConfig) (Logger, *DebugTransport, error) {
	if config.EnableDebug && config.Level > DEBUG {
		config.Level = DEBUG
	}
	logger, err := NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if !config.EnableDebug {
		return logger, nil, nil
	}
	return logger, NewDebugTransport(nil, logger), nil
}

type traceIDKey struct{}

// ContextWithTraceID stores a trace ID on the context
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored by ContextWithTraceID
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Debug(string, ...Field)             {}
func (l *NoOpLogger) Info(string, ...Field)              {}
func (l *NoOpLogger) Warn(string, ...Field)              {}
func (l *NoOpLogger) Error(string, ...Field)             {}
func (l *NoOpLogger) With(...Field) Logger               { return l }
func (l *NoOpLogger) WithTraceID(string) Logger          { return l }
func (l *NoOpLogger) WithContext(context.Context) Logger { return l }
func (l *NoOpLogger) SetLevel(LogLevel)                  {}
func (l *NoOpLogger) Close() error                       { return nil }

func mergeFields(bound, fields []Field) []Field {
	if len(bound) == 0 {
		return fields
	}
	out := make([]Field, 0, len(bound)+len(fields))
	out = append(out, bound...)
	return append(out, fields...)
}

package logging

import (
	"context"
	"errors"
)

// MultiLogger fans every call out to several loggers
type MultiLogger struct {
	loggers []Logger
}

func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Debug(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Debug(msg, fields...)
	}
}

func (m *MultiLogger) Info(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Info(msg, fields...)
	}
}

func (m *MultiLogger) Warn(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Warn(msg, fields...)
	}
}

func (m *MultiLogger) Error(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Error(msg, fields...)
	}
}

func (m *MultiLogger) each(fn func(Logger) Logger) Logger {
	out := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		out[i] = fn(l)
	}
	return &MultiLogger{loggers: out}
}

func (m *MultiLogger) With(fields ...Field) Logger {
	return m.each(func(l Logger) Logger { return l.With(fields...) })
}

func (m *MultiLogger) WithTraceID(traceID string) Logger {
	return m.each(func(l Logger) Logger { return l.WithTraceID(traceID) })
}

func (m *MultiLogger) WithContext(ctx context.Context) Logger {
	return m.each(func(l Logger) Logger { return l.WithContext(ctx) })
}

func (m *MultiLogger) SetLevel(level LogLevel) {
	for _, l := range m.loggers {
		l.SetLevel(level)
	}
}

// Close closes every logger and joins their errors
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

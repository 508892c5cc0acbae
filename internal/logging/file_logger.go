package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// fileSink is the open log file shared by a FileLogger and its derived loggers
type fileSink struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	size       int64
	maxSize    int64
	maxBackups int
	rotate     bool
	level      LogLevel
	redact     bool
	closed     bool
}

// FileLogger writes JSON lines to a file with optional size-based rotation
type FileLogger struct {
	sink    *fileSink
	traceID string
	fields  []Field
}

// FileLoggerConfig contains configuration for file logger
type FileLoggerConfig struct {
	FilePath        string
	Level           LogLevel
	MaxFileSize     int64 // in bytes, 0 means no rotation
	MaxBackups      int   // rotated files to keep, 0 keeps all
	RotateEnabled   bool
	RedactSensitive bool
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := openLogFile(config.FilePath)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &FileLogger{
		sink: &fileSink{
			file:       file,
			path:       config.FilePath,
			size:       info.Size(),
			maxSize:    config.MaxFileSize,
			maxBackups: config.MaxBackups,
			rotate:     config.RotateEnabled && config.MaxFileSize > 0,
			level:      config.Level,
			redact:     config.RedactSensitive,
		},
	}, nil
}

func openLogFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func (l *FileLogger) log(level LogLevel, msg string, fields ...Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level || s.closed {
		return
	}

	if s.rotate && s.size >= s.maxSize {
		if err := s.rotateLocked(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log file: %v\n", err)
		}
	}

	if s.redact {
		msg = RedactSensitive(msg)
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		TraceID:   l.traceID,
	}
	if all := mergeFields(l.fields, fields); len(all) > 0 {
		entry.Fields = make(map[string]interface{}, len(all))
		for _, field := range all {
			value := field.Value
			if err, ok := value.(error); ok {
				value = err.Error()
			}
			if str, ok := value.(string); ok && s.redact {
				value = RedactSensitive(str)
			}
			entry.Fields[field.Key] = value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}

	n, err := s.file.Write(append(data, '\n'))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
		return
	}
	s.size += int64(n)
}

// rotateLocked renames the current file with a timestamp suffix, reopens the
// original path and prunes old backups beyond maxBackups
func (s *fileSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	rotatedPath := fmt.Sprintf("%s.%s", s.path, time.Now().UTC().Format("20060102-150405.000000"))
	renameErr := os.Rename(s.path, rotatedPath)

	file, err := openLogFile(s.path)
	if err != nil {
		return err
	}
	s.file = file
	if renameErr != nil {
		return fmt.Errorf("failed to rename log file: %w", renameErr)
	}
	s.size = 0

	return s.pruneLocked()
}

func (s *fileSink) pruneLocked() error {
	if s.maxBackups <= 0 {
		return nil
	}
	backups, err := filepath.Glob(s.path + ".*")
	if err != nil {
		return err
	}
	if len(backups) <= s.maxBackups {
		return nil
	}
	// timestamp suffixes sort chronologically
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-s.maxBackups] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old log file: %w", err)
		}
	}
	return nil
}

func (l *FileLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *FileLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *FileLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *FileLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

func (l *FileLogger) With(fields ...Field) Logger {
	return &FileLogger{
		sink:    l.sink,
		traceID: l.traceID,
		fields:  mergeFields(l.fields, fields),
	}
}

func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{sink: l.sink, traceID: traceID, fields: l.fields}
}

func (l *FileLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

// SetLevel changes the level for this logger and every logger derived from it
func (l *FileLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Close closes the underlying file; derived loggers become silent
func (l *FileLogger) Close() error {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.file == nil {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

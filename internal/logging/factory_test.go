package logging

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != INFO {
		t.Errorf("Expected Level=INFO, got %v", config.Level)
	}
	if !config.EnableConsole {
		t.Error("Expected EnableConsole=true")
	}
	if !config.RedactSensitive {
		t.Error("Expected RedactSensitive=true")
	}
	if config.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected MaxFileSize=104857600, got %v", config.MaxFileSize)
	}
}

func TestNewLogger_Selection(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		console bool
		file    string
		want    string
	}{
		{"console only", true, "", "*logging.ConsoleLogger"},
		{"file only", false, filepath.Join(tempDir, "file.log"), "*logging.FileLogger"},
		{"console and file", true, filepath.Join(tempDir, "both.log"), "*logging.MultiLogger"},
		{"nothing enabled", false, "", "*logging.NoOpLogger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(LogConfig{Level: INFO, EnableConsole: tt.console, OutputFile: tt.file, MaxFileSize: 1024})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			t.Cleanup(func() { logger.Close() })

			if got := typeName(logger); got != tt.want {
				t.Errorf("logger type mismatch: got %s, want %s", got, tt.want)
			}
			if tt.file != "" {
				if _, err := os.Stat(tt.file); os.IsNotExist(err) {
					t.Error("Log file was not created")
				}
			}
		})
	}
}

func typeName(l Logger) string {
	switch l.(type) {
	case *ConsoleLogger:
		return "*logging.ConsoleLogger"
	case *FileLogger:
		return "*logging.FileLogger"
	case *MultiLogger:
		return "*logging.MultiLogger"
	case *NoOpLogger:
		return "*logging.NoOpLogger"
	}
	return "unknown"
}

func TestNewLogger_InvalidPath(t *testing.T) {
	invalidPath := "/invalid/path/that/does/not/exist/test.log"
	if runtime.GOOS == "windows" {
		invalidPath = `Z:\nonexistent\path\that\does\not\exist\test.log`
	}
	if os.Geteuid() == 0 {
		t.Skip("root can create arbitrary directories")
	}

	if _, err := NewLogger(LogConfig{Level: INFO, OutputFile: invalidPath}); err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestNewDebugLoggerWithTransport(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, transport, err := NewDebugLoggerWithTransport(LogConfig{Level: INFO, OutputFile: logPath, EnableDebug: true})
	if err != nil {
		t.Fatalf("NewDebugLoggerWithTransport() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	if transport == nil {
		t.Fatal("DebugTransport is nil")
	}

	logger2, transport2, err := NewDebugLoggerWithTransport(LogConfig{Level: INFO})
	if err != nil {
		t.Fatalf("NewDebugLoggerWithTransport() error = %v", err)
	}
	t.Cleanup(func() { logger2.Close() })
	if transport2 != nil {
		t.Error("Expected nil DebugTransport when EnableDebug=false")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"quiet":   QUIET,
		"normal":  INFO,
		"verbose": DEBUG,
		"debug":   DEBUG,
		"WARN":    WARN,
		"":        INFO,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) mismatch: got %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

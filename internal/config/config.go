package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/docloader/internal/api"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/joho/godotenv"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "DOCLOADER_"
	// StateFileName is the default sqlite file inside the config dir
	StateFileName = "state.db"
	// MemoryStatePath keeps reports in memory for the life of the process
	MemoryStatePath = ":memory:"
)

// Backend names
const (
	BackendDrive = "drive"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
)

// Config holds application configuration
type Config struct {
	// Backend selects the storage backend used when a command does not name one
	Backend string `json:"backend"`

	// DefaultBucket lets flat-prefix references omit the scheme and bucket
	DefaultBucket string `json:"defaultBucket,omitempty"`

	// WorkerPoolSize bounds concurrent fetches in the parallel discipline
	WorkerPoolSize int `json:"workerPoolSize"`

	// RetryCount is the number of extra fetch attempts per file
	RetryCount int `json:"retryCount"`

	// BackoffUnitMs is multiplied by the attempt number between fetch retries
	BackoffUnitMs int `json:"backoffUnitMs"`

	// ListRetries is the maximum number of retries for listing calls
	ListRetries int `json:"listRetries"`

	// ListRetryDelayMs is the base delay for exponential listing backoff
	ListRetryDelayMs int `json:"listRetryDelayMs"`

	// InterFilePauseMs is slept between files in the sequential discipline
	InterFilePauseMs int `json:"interFilePauseMs"`

	// Discipline forces sequential or parallel fetching (auto uses the backend default)
	Discipline string `json:"discipline"`

	// FailOnListingError aborts discovery instead of skipping a failing subtree
	FailOnListingError bool `json:"failOnListingError"`

	// ExcludePatterns drops discovered files by name or relative key
	ExcludePatterns []string `json:"excludePatterns,omitempty"`

	// StatePath is the sqlite report store; empty uses the config dir, ":memory:" disables persistence
	StatePath string `json:"statePath,omitempty"`

	// CredentialsFile is a Google service-account key file
	CredentialsFile string `json:"credentialsFile,omitempty"`

	// KeyringProfile names a service-account key stored in the OS keyring
	KeyringProfile string `json:"keyringProfile,omitempty"`

	// AWSRegion and S3Endpoint configure the S3 backend
	AWSRegion  string `json:"awsRegion,omitempty"`
	S3Endpoint string `json:"s3Endpoint,omitempty"`

	// Static AWS keys are read from the environment only and never saved
	AWSAccessKeyID     string `json:"-"`
	AWSSecretAccessKey string `json:"-"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel"`

	// LogFile receives JSON log lines when set
	LogFile string `json:"logFile,omitempty"`

	// OutputFormat is the default output format (json, table)
	OutputFormat types.OutputFormat `json:"outputFormat"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:          BackendDrive,
		WorkerPoolSize:   utils.DefaultWorkerPool,
		RetryCount:       utils.DefaultFetchRetries,
		BackoffUnitMs:    utils.DefaultBackoffUnitMs,
		ListRetries:      utils.DefaultMaxRetries,
		ListRetryDelayMs: utils.DefaultRetryDelayMs,
		InterFilePauseMs: 0,
		Discipline:       string(pipeline.DisciplineAuto),
		LogLevel:         "normal",
		OutputFormat:     types.OutputFormatTable,
	}
}

// Load loads configuration with precedence: env vars > config file > .env > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports variables from path without overriding the real environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func (c *Config) loadFromFile() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// envString returns the first non-empty variable among the prefixed key and aliases
func envString(key string, aliases ...string) (string, bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v, true
	}
	for _, alias := range aliases {
		if v := os.Getenv(alias); v != "" {
			return v, true
		}
	}
	return "", false
}

func envInt(key string, target *int) {
	if v, ok := envString(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = n
		}
	}
}

func (c *Config) loadFromEnv() {
	if v, ok := envString("BACKEND", "DATA_SOURCE"); ok {
		c.Backend = strings.ToLower(v)
	}
	if v, ok := envString("DEFAULT_BUCKET", "GCS_BUCKET"); ok {
		c.DefaultBucket = v
	}
	envInt("WORKERS", &c.WorkerPoolSize)
	envInt("RETRY_COUNT", &c.RetryCount)
	envInt("BACKOFF_UNIT_MS", &c.BackoffUnitMs)
	envInt("LIST_RETRIES", &c.ListRetries)
	envInt("LIST_RETRY_DELAY_MS", &c.ListRetryDelayMs)
	envInt("INTER_FILE_PAUSE_MS", &c.InterFilePauseMs)
	if v, ok := envString("DISCIPLINE"); ok {
		c.Discipline = strings.ToLower(v)
	}
	if v, ok := envString("FAIL_ON_LISTING_ERROR"); ok {
		c.FailOnListingError = parseBool(v)
	}
	if v, ok := envString("EXCLUDE"); ok {
		c.ExcludePatterns = SplitList(v)
	}
	if v, ok := envString("STATE_PATH"); ok {
		c.StatePath = v
	}
	if v, ok := envString("CREDENTIALS_FILE"); ok {
		c.CredentialsFile = v
	}
	if v, ok := envString("KEYRING_PROFILE"); ok {
		c.KeyringProfile = v
	}
	if v, ok := envString("AWS_REGION", "AWS_DEFAULT_REGION"); ok {
		c.AWSRegion = v
	}
	if v, ok := envString("S3_ENDPOINT"); ok {
		c.S3Endpoint = v
	}
	if v, ok := envString("AWS_ACCESS_KEY_ID"); ok {
		c.AWSAccessKeyID = v
	}
	if v, ok := envString("AWS_SECRET_ACCESS_KEY"); ok {
		c.AWSSecretAccessKey = v
	}
	if v, ok := envString("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := envString("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := envString("OUTPUT_FORMAT"); ok {
		c.OutputFormat = types.OutputFormat(v)
	}
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDrive, BackendGCS, BackendS3:
	default:
		return fmt.Errorf("invalid backend: %s (must be 'drive', 'gcs' or 's3')", c.Backend)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1, got: %d", c.WorkerPoolSize)
	}

	if c.RetryCount < 0 || c.RetryCount > 10 {
		return fmt.Errorf("retry count must be between 0 and 10, got: %d", c.RetryCount)
	}

	if c.BackoffUnitMs < 0 || c.BackoffUnitMs > 60000 {
		return fmt.Errorf("backoff unit must be between 0ms and 60000ms, got: %d", c.BackoffUnitMs)
	}

	if c.ListRetries < 0 || c.ListRetries > 10 {
		return fmt.Errorf("list retries must be between 0 and 10, got: %d", c.ListRetries)
	}

	if c.ListRetryDelayMs < 100 || c.ListRetryDelayMs > 60000 {
		return fmt.Errorf("list retry delay must be between 100ms and 60000ms, got: %d", c.ListRetryDelayMs)
	}

	if c.InterFilePauseMs < 0 {
		return fmt.Errorf("inter-file pause must be non-negative, got: %d", c.InterFilePauseMs)
	}

	if _, err := pipeline.ParseDiscipline(c.Discipline); err != nil {
		return err
	}

	if c.OutputFormat != types.OutputFormatJSON && c.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.OutputFormat)
	}

	validLogLevels := []string{"quiet", "normal", "verbose", "debug"}
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
}

// GetBackoffUnit returns the fetch backoff unit as a duration
func (c *Config) GetBackoffUnit() time.Duration {
	return time.Duration(c.BackoffUnitMs) * time.Millisecond
}

// GetInterFilePause returns the sequential inter-file pause as a duration
func (c *Config) GetInterFilePause() time.Duration {
	return time.Duration(c.InterFilePauseMs) * time.Millisecond
}

// FetchPolicy returns the retry policy handed to retrieval clients
func (c *Config) FetchPolicy() api.RetryPolicy {
	return api.RetryPolicy{
		RetryCount:  c.RetryCount,
		BackoffUnit: c.GetBackoffUnit(),
	}
}

// PipelineOptions returns the options handed to the ingestion pipeline
func (c *Config) PipelineOptions() pipeline.Options {
	discipline, _ := pipeline.ParseDiscipline(c.Discipline)
	return pipeline.Options{
		WorkerPoolSize: c.WorkerPoolSize,
		Discipline:     discipline,
		InterFilePause: c.GetInterFilePause(),
		Exclude:        c.ExcludePatterns,
	}
}

// ResolveStatePath returns the sqlite path, or MemoryStatePath
func (c *Config) ResolveStatePath() (string, error) {
	if c.StatePath != "" {
		return c.StatePath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateFileName), nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "docloader"), nil
}

// SplitList splits a comma-separated value, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

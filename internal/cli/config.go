package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Commands for managing docloader configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Use 'config show' to see available keys",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	Long:  "Reset all configuration settings to their default values",
	RunE:  runConfigReset,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
}

// configView renders a config as key/value rows
type configView struct {
	*config.Config
}

func (v configView) Headers() []string { return []string{"Key", "Value"} }

func (v configView) Rows() [][]string {
	c := v.Config
	return [][]string{
		{"backend", c.Backend},
		{"defaultBucket", c.DefaultBucket},
		{"workerPoolSize", strconv.Itoa(c.WorkerPoolSize)},
		{"retryCount", strconv.Itoa(c.RetryCount)},
		{"backoffUnitMs", strconv.Itoa(c.BackoffUnitMs)},
		{"listRetries", strconv.Itoa(c.ListRetries)},
		{"listRetryDelayMs", strconv.Itoa(c.ListRetryDelayMs)},
		{"interFilePauseMs", strconv.Itoa(c.InterFilePauseMs)},
		{"discipline", c.Discipline},
		{"failOnListingError", strconv.FormatBool(c.FailOnListingError)},
		{"excludePatterns", strings.Join(c.ExcludePatterns, ",")},
		{"statePath", c.StatePath},
		{"credentialsFile", c.CredentialsFile},
		{"keyringProfile", c.KeyringProfile},
		{"awsRegion", c.AWSRegion},
		{"s3Endpoint", c.S3Endpoint},
		{"logLevel", c.LogLevel},
		{"logFile", c.LogFile},
		{"outputFormat", string(c.OutputFormat)},
	}
}

func (v configView) EmptyMessage() string { return "No configuration" }

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return out.WriteError("config.show", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	if flags.OutputFormat == types.OutputFormatTable {
		return out.WriteSuccess("config.show", configView{cfg})
	}
	return out.WriteSuccess("config.show", cfg)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	key := args[0]
	value := args[1]

	cfg, err := config.Load()
	if err != nil {
		return out.WriteError("config.set", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		return out.WriteError("config.set", utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build())
	}

	if err := cfg.Save(); err != nil {
		return out.WriteError("config.set", utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to save configuration: %v", err)).Build())
	}

	out.Log("Configuration updated: %s = %s", key, value)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

// setConfigValue assigns value to the named key. Range checks are left to Validate.
func setConfigValue(cfg *config.Config, key, value string) error {
	intValue := func(target *int) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s must be an integer", key)
		}
		*target = n
		return nil
	}

	switch strings.ToLower(key) {
	case "backend":
		cfg.Backend = strings.ToLower(value)
	case "defaultbucket":
		cfg.DefaultBucket = value
	case "workerpoolsize", "workers":
		return intValue(&cfg.WorkerPoolSize)
	case "retrycount":
		return intValue(&cfg.RetryCount)
	case "backoffunitms":
		return intValue(&cfg.BackoffUnitMs)
	case "listretries":
		return intValue(&cfg.ListRetries)
	case "listretrydelayms":
		return intValue(&cfg.ListRetryDelayMs)
	case "interfilepausems":
		return intValue(&cfg.InterFilePauseMs)
	case "discipline":
		cfg.Discipline = strings.ToLower(value)
	case "failonlistingerror":
		cfg.FailOnListingError = parseBool(value)
	case "excludepatterns", "exclude":
		cfg.ExcludePatterns = config.SplitList(value)
	case "statepath":
		cfg.StatePath = value
	case "credentialsfile":
		cfg.CredentialsFile = value
	case "keyringprofile":
		cfg.KeyringProfile = value
	case "awsregion":
		cfg.AWSRegion = value
	case "s3endpoint":
		cfg.S3Endpoint = value
	case "loglevel":
		cfg.LogLevel = value
	case "logfile":
		cfg.LogFile = value
	case "outputformat":
		cfg.OutputFormat = types.OutputFormat(value)
	default:
		return fmt.Errorf("Unknown configuration key: %s", key)
	}
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg := config.DefaultConfig()
	if err := cfg.Save(); err != nil {
		return out.WriteError("config.reset", utils.NewCLIError(utils.ErrCodeUnknown,
			fmt.Sprintf("Failed to reset configuration: %v", err)).Build())
	}

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", cfg)
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

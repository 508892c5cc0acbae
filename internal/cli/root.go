package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dl-alexandre/docloader/pkg/version"
	"github.com/spf13/cobra"
)

var (
	globalFlags    types.GlobalFlags
	logger         logging.Logger = logging.NewNoOpLogger()
	debugTransport *logging.DebugTransport
)

var rootCmd = &cobra.Command{
	Use:   "docloader",
	Short: "Document loader - pull and decode documents from cloud storage",
	Long: `docloader walks a Google Drive folder, a GCS prefix or an S3 prefix,
downloads every PDF, DOCX and TXT file it finds and extracts their text.

The resulting report is stored per backend and can be read back with
'docloader report show'. All commands support JSON output for automation.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.ConfigDir != "" {
			if err := os.Setenv(config.EnvPrefix+"CONFIG_DIR", globalFlags.ConfigDir); err != nil {
				return err
			}
		}

		cfg, err := config.Load()
		if err != nil {
			cfg = config.DefaultConfig()
		}
		if err := validateGlobalFlags(cmd, cfg); err != nil {
			return err
		}

		logConfig := logging.DefaultLogConfig()
		logConfig.OutputFile = globalFlags.LogFile
		if logConfig.OutputFile == "" {
			logConfig.OutputFile = cfg.LogFile
		}
		logConfig.EnableConsole = !globalFlags.Quiet
		logConfig.EnableDebug = globalFlags.Debug
		if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
			logConfig.Level = level
		}
		if globalFlags.Verbose {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.Quiet {
			logConfig.Level = logging.QUIET
		}

		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version number of docloader",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
		if globalFlags.OutputFormat == types.OutputFormatJSON {
			return out.WriteSuccess("version", version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP((*string)(&globalFlags.OutputFormat), "output", "o", "", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Log every backend HTTP request")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigDir, "config-dir", "", "Configuration directory")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}
	if globalFlags.OutputFormat == "" {
		globalFlags.OutputFormat = cfg.OutputFormat
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s", globalFlags.OutputFormat)
	}
	return nil
}

// Execute runs the root command and exits with the code of any failure
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(utils.ExitUnknown)
	}
	return nil
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}
	return cfg, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/state"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Stored ingestion reports",
	Long: `Read back the report stored by the last ingest run of each backend.
Each backend keeps only its latest report (drive_data, gcs_data, s3_data).`,
}

var reportShowCmd = &cobra.Command{
	Use:   "show [backend|key]",
	Short: "Show the latest report of a backend",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportShow,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports",
	RunE:  runReportList,
}

var reportClearCmd = &cobra.Command{
	Use:   "clear [backend|key]",
	Short: "Delete stored reports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportClear,
}

var (
	reportPrompt   bool
	reportClearAll bool
)

func init() {
	reportShowCmd.Flags().BoolVar(&reportPrompt, "prompt", false, "Print the report as prompt-ready text")
	reportClearCmd.Flags().BoolVar(&reportClearAll, "all", false, "Delete every stored report")

	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportClearCmd)
	rootCmd.AddCommand(reportCmd)
}

var backendStateKeys = map[string]string{
	config.BackendDrive: utils.StateKeyDrive,
	config.BackendGCS:   utils.StateKeyGCS,
	config.BackendS3:    utils.StateKeyS3,
}

// stateKeyFor maps a backend name onto its state key; other values are used as keys
func stateKeyFor(arg string, cfg *config.Config) string {
	if arg == "" {
		arg = cfg.Backend
	}
	if key, ok := backendStateKeys[arg]; ok {
		return key
	}
	return arg
}

// reportListing summarizes stored reports
type reportListing struct {
	Reports []reportListEntry `json:"reports"`
}

type reportListEntry struct {
	Key         string `json:"key"`
	Source      string `json:"source"`
	FolderRef   string `json:"folderRef"`
	Parsed      int    `json:"parsed"`
	Failed      int    `json:"failed"`
	CompletedAt string `json:"completedAt"`
}

func (l *reportListing) Headers() []string {
	return []string{"Key", "Source", "Folder", "Parsed", "Failed", "Completed"}
}

func (l *reportListing) Rows() [][]string {
	rows := make([][]string, 0, len(l.Reports))
	for _, r := range l.Reports {
		rows = append(rows, []string{
			r.Key, r.Source, truncate(r.FolderRef, 40),
			strconv.Itoa(r.Parsed), strconv.Itoa(r.Failed), r.CompletedAt,
		})
	}
	return rows
}

func (l *reportListing) EmptyMessage() string { return "No stored reports" }

func openConfiguredStore() (*config.Config, state.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openReportStore(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func notFound(key string) types.CLIError {
	return utils.NewCLIError(utils.ErrCodeFileNotFound, fmt.Sprintf("no report stored under %s", key)).
		WithContext("suggestedAction", "run 'docloader ingest' first").
		Build()
}

func runReportShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, store, err := openConfiguredStore()
	if err != nil {
		return out.WriteErr("report.show", err)
	}
	defer store.Close()

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	key := stateKeyFor(arg, cfg)

	report, err := store.Get(commandContext(cmd), key)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return out.WriteError("report.show", notFound(key))
		}
		return out.WriteError("report.show", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}

	if reportPrompt {
		out.Print(report.PromptText())
		return nil
	}
	out.Log("%s: %d parsed, %d failed (run %s, %s)", report.Source, len(report.Parsed), len(report.Failed),
		report.RunID, humanize.Time(report.CompletedAt))
	return out.WithTraceID(report.RunID).WriteSuccess("report.show", report)
}

func runReportList(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	_, store, err := openConfiguredStore()
	if err != nil {
		return out.WriteErr("report.list", err)
	}
	defer store.Close()

	ctx := commandContext(cmd)
	keys, err := store.Keys(ctx)
	if err != nil {
		return out.WriteError("report.list", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
	}

	listing := &reportListing{Reports: []reportListEntry{}}
	for _, key := range keys {
		report, err := store.Get(ctx, key)
		if err != nil {
			out.AddWarning(utils.ErrCodeStateError, fmt.Sprintf("%s: %v", key, err), "warning")
			continue
		}
		listing.Reports = append(listing.Reports, reportListEntry{
			Key:         key,
			Source:      report.Source,
			FolderRef:   report.FolderRef,
			Parsed:      len(report.Parsed),
			Failed:      len(report.Failed),
			CompletedAt: humanize.Time(report.CompletedAt),
		})
	}
	return out.WriteSuccess("report.list", listing)
}

func runReportClear(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, store, err := openConfiguredStore()
	if err != nil {
		return out.WriteErr("report.clear", err)
	}
	defer store.Close()

	ctx := commandContext(cmd)
	var keys []string
	if reportClearAll {
		keys, err = store.Keys(ctx)
		if err != nil {
			return out.WriteError("report.clear", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
		}
	} else {
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		keys = []string{stateKeyFor(arg, cfg)}
	}

	cleared := []string{}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			if errors.Is(err, state.ErrNotFound) && !reportClearAll {
				return out.WriteError("report.clear", notFound(key))
			}
			if !errors.Is(err, state.ErrNotFound) {
				return out.WriteError("report.clear", utils.NewCLIError(utils.ErrCodeStateError, err.Error()).Build())
			}
			continue
		}
		cleared = append(cleared, key)
	}

	out.Log("Cleared %d report(s)", len(cleared))
	return out.WriteSuccess("report.clear", map[string]interface{}{"cleared": cleared})
}

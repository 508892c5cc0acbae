package cli

import (
	"fmt"

	"github.com/dl-alexandre/docloader/internal/auth"
	"github.com/dl-alexandre/docloader/internal/backend"
	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/state"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type ingestOptions struct {
	backend    string
	discipline string
	workers    int
	bucket     string
	exclude    []string
	strict     bool
	noSave     bool
	prompt     bool
}

var ingestFlags ingestOptions

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder-url-or-id>",
	Short: "Download and decode every document under a folder",
	Long: `Walk a folder reference, download every file and extract the text of
PDF, DOCX and TXT documents. Files that cannot be fetched or decoded are
listed as failed; the run itself only fails when the reference is invalid,
credentials are missing or nothing could be listed.

The backend is inferred from the reference scheme (gs://, s3:// or a Drive
URL) and otherwise taken from --backend or the configured default.

Examples:
  docloader ingest https://drive.google.com/drive/folders/1AbCdEfGhIjK
  docloader ingest gs://hiring-bucket/resumes/2024
  docloader ingest s3://hiring-bucket/resumes --discipline sequential
  docloader ingest 1AbCdEfGhIjK --prompt`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.backend, "backend", "", "Backend to use (drive, gcs, s3)")
	ingestCmd.Flags().StringVar(&ingestFlags.discipline, "discipline", "", "Fetch discipline (auto, sequential, parallel)")
	ingestCmd.Flags().IntVar(&ingestFlags.workers, "workers", 0, "Worker pool size for parallel fetches")
	ingestCmd.Flags().StringVar(&ingestFlags.bucket, "bucket", "", "Default bucket for references without a scheme")
	ingestCmd.Flags().StringSliceVar(&ingestFlags.exclude, "exclude", nil, "Patterns of files to skip (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestFlags.strict, "strict", false, "Fail when any folder cannot be listed")
	ingestCmd.Flags().BoolVar(&ingestFlags.noSave, "no-save", false, "Do not store the report")
	ingestCmd.Flags().BoolVar(&ingestFlags.prompt, "prompt", false, "Print the report as prompt-ready text")

	rootCmd.AddCommand(ingestCmd)
}

// ingestResult is the data returned by the ingest command
type ingestResult struct {
	Summary  string                 `json:"summary"`
	Backend  string                 `json:"backend"`
	StateKey string                 `json:"stateKey,omitempty"`
	Report   *types.IngestionReport `json:"report"`
}

func (r *ingestResult) AsTableRenderer() types.TableRenderer {
	return r.Report
}

func runIngest(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	ref := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return ingestFailure(out, err)
	}
	if err := applyIngestFlags(cfg); err != nil {
		return ingestFailure(out, err)
	}

	name := cfg.Backend
	if ingestFlags.backend == "" {
		name = backend.ForRef(ref, cfg.Backend)
	}

	store, err := openReportStore(cfg, ingestFlags.noSave)
	if err != nil {
		return ingestFailure(out, err)
	}
	defer store.Close()

	ctx := commandContext(cmd)

	deps, err := backendDeps()
	if err != nil {
		return ingestFailure(out, err)
	}
	b, err := backend.New(ctx, name, cfg, deps)
	if err != nil {
		return ingestFailure(out, err)
	}

	p := pipeline.New(b, cfg.PipelineOptions(),
		pipeline.WithLogger(logger),
		pipeline.WithProgress(progressPrinter(out)),
	)
	out.Verbose("Ingesting %s with the %s backend (%s)", ref, b.Name(), p.Discipline())

	summary, report, err := p.Run(ctx, store, ref)
	if err != nil {
		return ingestFailure(out, err)
	}

	if ingestFlags.prompt {
		out.Print(report.PromptText())
		return nil
	}

	for _, skipped := range report.SkippedSubtrees {
		out.AddWarning("SUBTREE_SKIPPED", fmt.Sprintf("%s: %s", skipped.ContainerID, skipped.Error), "warning")
	}
	out.Log("%s", summary)

	result := &ingestResult{Summary: summary, Backend: b.Name(), Report: report}
	if !ingestFlags.noSave {
		result.StateKey = b.StateKey()
	}
	return out.WithTraceID(report.RunID).WriteSuccess("ingest", result)
}

// ingestFailure reports a fatal ingest error with its {status, message} result as data
func ingestFailure(out *OutputWriter, err error) error {
	return out.WriteFailure("ingest", err, pipeline.ErrorResult(err))
}

func applyIngestFlags(cfg *config.Config) error {
	if ingestFlags.backend != "" {
		cfg.Backend = ingestFlags.backend
	}
	if ingestFlags.discipline != "" {
		cfg.Discipline = ingestFlags.discipline
	}
	if ingestFlags.workers > 0 {
		cfg.WorkerPoolSize = ingestFlags.workers
	}
	if ingestFlags.bucket != "" {
		cfg.DefaultBucket = ingestFlags.bucket
	}
	if len(ingestFlags.exclude) > 0 {
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, ingestFlags.exclude...)
	}
	if ingestFlags.strict {
		cfg.FailOnListingError = true
	}
	if err := cfg.Validate(); err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}
	return nil
}

func openReportStore(cfg *config.Config, memory bool) (state.Store, error) {
	if memory {
		return state.NewMemoryStore(), nil
	}
	path, err := cfg.ResolveStatePath()
	if err != nil {
		return nil, err
	}
	store, err := state.Open(path)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeStateError,
			fmt.Sprintf("failed to open report store %s: %v", path, err)).Build(), err)
	}
	return store, nil
}

func backendDeps() (backend.Deps, error) {
	deps := backend.Deps{Logger: logger}
	if debugTransport != nil {
		deps.Transport = debugTransport
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return deps, err
	}
	store, err := auth.NewKeyStore(dir)
	if err != nil {
		return deps, err
	}
	deps.KeyStore = store
	return deps, nil
}

func progressPrinter(out *OutputWriter) pipeline.Progress {
	return func(name string, done, total int64) {
		if total > 0 {
			out.Verbose("%s: %s / %s (%d%%)", name, humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)), done*100/total)
			return
		}
		out.Verbose("%s: %s", name, humanize.Bytes(uint64(done)))
	}
}

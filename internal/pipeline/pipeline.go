package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dl-alexandre/docloader/internal/decode"
	"github.com/dl-alexandre/docloader/internal/exclude"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/google/uuid"
)

// Pipeline discovers, fetches and decodes every document under a folder reference
type Pipeline struct {
	backend  Backend
	opts     Options
	logger   logging.Logger
	decoder  *decode.Decoder
	exclude  *exclude.Matcher
	progress Progress
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgress sets the callback invoked while payloads stream in
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) {
		p.progress = progress
	}
}

// New creates a pipeline over backend
func New(backend Backend, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		backend: backend,
		opts:    opts,
		logger:  logging.NewNoOpLogger(),
		now:     time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.decoder = decode.NewDecoder(p.logger)
	p.exclude = exclude.New(opts.Exclude)
	return p
}

// Discipline returns the discipline a run will use
func (p *Pipeline) Discipline() Discipline {
	if p.opts.Discipline == "" || p.opts.Discipline == DisciplineAuto {
		return p.backend.DefaultDiscipline()
	}
	return p.opts.Discipline
}

type fetched struct {
	entry  types.FileEntry
	result types.FetchResult
}

// Ingest runs one ingestion and returns the summary line and the report.
// Only input, credential and discovery failures are returned as errors.
func (p *Pipeline) Ingest(ctx context.Context, ref string) (string, *types.IngestionReport, error) {
	runID := uuid.New().String()
	ctx = logging.ContextWithTraceID(ctx, runID)
	logger := p.logger.WithTraceID(runID).With(logging.F("backend", p.backend.Name()))
	started := p.now()

	root, err := p.backend.Resolve(ref)
	if err != nil {
		logger.Error("Invalid folder reference", logging.F("ref", ref), logging.F("error", err.Error()))
		return "", nil, &IngestError{Kind: KindInput, Err: err}
	}

	inv, err := p.backend.Discover(ctx, root)
	if err != nil {
		logger.Error("Discovery failed", logging.F("ref", ref), logging.F("error", err.Error()))
		return "", nil, &IngestError{Kind: kindFor(err, KindDiscovery), Err: err}
	}
	inv.Entries = p.filter(logger, root, inv.Entries)
	if len(inv.Entries) == 0 {
		msg := p.noFilesMessage()
		logger.Warn(msg, logging.F("ref", ref), logging.F("skippedSubtrees", len(inv.Skipped)))
		cliErr := utils.NewCLIError(utils.ErrCodeNoFilesFound, msg).
			WithContext("ref", ref).
			WithContext("skippedSubtrees", len(inv.Skipped)).
			Build()
		return "", nil, &IngestError{Kind: KindDiscovery, Err: utils.NewAppError(cliErr)}
	}

	discipline := p.Discipline()
	logger.Info("Discovered files",
		logging.F("count", len(inv.Entries)),
		logging.F("skippedSubtrees", len(inv.Skipped)),
		logging.F("discipline", string(discipline)),
	)

	report := &types.IngestionReport{
		RunID:           runID,
		Source:          p.backend.Source(),
		FolderRef:       ref,
		Discipline:      string(discipline),
		StartedAt:       started,
		Parsed:          []types.ParsedFile{},
		Failed:          []types.FailedFile{},
		TotalDiscovered: len(inv.Entries),
		SkippedSubtrees: inv.Skipped,
	}

	if discipline == DisciplineParallel {
		for _, f := range p.fetchParallel(ctx, logger, inv.Entries) {
			p.record(logger, report, f)
		}
	} else {
		p.runSequential(ctx, logger, inv.Entries, report)
	}

	report.CompletedAt = p.now()
	summary := report.Summary(p.backend.Label())
	logger.Info("Ingestion complete",
		logging.F("parsed", len(report.Parsed)),
		logging.F("failed", len(report.Failed)),
		logging.F("duration", report.CompletedAt.Sub(started).String()),
	)
	return summary, report, nil
}

// Run ingests ref and stores the report under the backend's state key.
// Nothing is stored when ingestion fails.
func (p *Pipeline) Run(ctx context.Context, store ReportStore, ref string) (string, *types.IngestionReport, error) {
	summary, report, err := p.Ingest(ctx, ref)
	if err != nil {
		return "", nil, err
	}
	if err := store.Put(ctx, p.backend.StateKey(), report); err != nil {
		cliErr := utils.NewCLIError(utils.ErrCodeStateError, fmt.Sprintf("failed to store report: %v", err)).
			WithContext("key", p.backend.StateKey()).
			Build()
		return summary, report, &IngestError{Kind: KindState, Err: utils.WrapAppError(cliErr, err)}
	}
	return summary, report, nil
}

// filter drops excluded entries. Flat-prefix entries match on the key below
// the prefix, others on their name.
func (p *Pipeline) filter(logger logging.Logger, root Root, entries []types.FileEntry) []types.FileEntry {
	if p.exclude == nil {
		return entries
	}
	kept := entries[:0:0]
	for _, e := range entries {
		rel := e.Name
		if e.Bucket != "" {
			rel = strings.TrimPrefix(e.ID, root.Path)
		}
		if p.exclude.IsExcluded(rel) {
			logger.Debug("Excluded", logging.F("file", rel))
			continue
		}
		kept = append(kept, e)
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		logger.Info("Excluded files", logging.F("count", dropped), logging.F("patterns", p.exclude.Patterns()))
	}
	return kept
}

func (p *Pipeline) noFilesMessage() string {
	if p.backend.Name() == "drive" {
		return "No files found in the folder."
	}
	return fmt.Sprintf("No files found in %s folder.", p.backend.Label())
}

// record turns one fetch outcome into a parsed or failed entry
func (p *Pipeline) record(logger logging.Logger, report *types.IngestionReport, f fetched) {
	name := f.entry.Name
	if !f.result.OK {
		reason := f.result.Err
		if reason == "" {
			reason = "Download failed"
		}
		logger.Warn("Fetch failed", logging.F("file", name), logging.F("error", reason))
		report.Failed = append(report.Failed, types.FailedFile{Filename: name, Reason: reason})
		return
	}

	text, err := p.decoder.Decode(name, f.result.Payload)
	if err != nil {
		logger.Warn("Decode failed", logging.F("file", name), logging.F("error", err.Error()))
		report.Failed = append(report.Failed, types.FailedFile{Filename: name, Reason: err.Error()})
		return
	}
	report.Parsed = append(report.Parsed, types.NewParsedFile(name, text))
}

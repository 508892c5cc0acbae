package pipeline

import (
	"context"

	"github.com/dl-alexandre/docloader/internal/types"
)

// Progress is called as a payload streams in. It may be called from several
// goroutines at once in the parallel discipline.
type Progress func(name string, done, total int64)

// Root is a validated folder reference
type Root struct {
	// Ref is the reference as supplied by the caller
	Ref string
	// Bucket is set by flat-prefix backends
	Bucket string
	// Path is the container ID or the object prefix
	Path string
	// ResourceKey unlocks link-shared Drive folders
	ResourceKey string
}

// Inventory is the flat list of regular entries found under a Root
type Inventory struct {
	Entries []types.FileEntry
	Skipped []types.SkippedSubtree
}

// Backend lists and fetches documents from one storage service
type Backend interface {
	// Name is the config name: drive, gcs or s3
	Name() string
	// Source is the tag recorded in the report
	Source() string
	// StateKey is the key the report is stored under
	StateKey() string
	// Label is the short name used in summaries
	Label() string
	// DefaultDiscipline is used when the configured discipline is auto
	DefaultDiscipline() Discipline
	// Resolve validates a folder reference without network calls
	Resolve(ref string) (Root, error)
	// Discover lists every regular entry under root
	Discover(ctx context.Context, root Root) (Inventory, error)
	// Fetch downloads one entry with retries; failures are carried in the result
	Fetch(ctx context.Context, entry types.FileEntry, progress Progress) types.FetchResult
}

// ReportStore receives the finished report
type ReportStore interface {
	Put(ctx context.Context, key string, report *types.IngestionReport) error
}

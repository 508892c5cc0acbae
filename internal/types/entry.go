package types

// EntryKind distinguishes regular files from directory-like nodes
type EntryKind string

const (
	EntryRegular   EntryKind = "regular"
	EntryContainer EntryKind = "container"
)

// FileEntry is a single listing result from a storage backend
type FileEntry struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
	Size int64     `json:"size,omitempty"`
	// Bucket is set by flat-prefix backends, where ID is the object key
	Bucket string `json:"bucket,omitempty"`
}

// IsContainer reports whether the entry must be traversed instead of fetched
func (e FileEntry) IsContainer() bool {
	return e.Kind == EntryContainer
}

// FetchResult carries the outcome of a single content fetch
type FetchResult struct {
	OK      bool   `json:"ok"`
	Payload []byte `json:"-"`
	Err     string `json:"error,omitempty"`
}

// FetchSuccess builds a successful fetch result
func FetchSuccess(payload []byte) FetchResult {
	return FetchResult{OK: true, Payload: payload}
}

// FetchFailure builds a failed fetch result from an error
func FetchFailure(err error) FetchResult {
	msg := "Download failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return FetchResult{Err: msg}
}

// SkippedSubtree records a container whose listing failed during discovery
type SkippedSubtree struct {
	ContainerID string `json:"containerId"`
	Error       string `json:"error"`
}

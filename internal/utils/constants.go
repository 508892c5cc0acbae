package utils

// OAuth scopes
const (
	ScopeDriveReadonly   = "https://www.googleapis.com/auth/drive.readonly"
	ScopeStorageReadonly = "https://www.googleapis.com/auth/devstorage.read_only"
)

var (
	ScopesDrive   = []string{ScopeDriveReadonly}
	ScopesStorage = []string{ScopeStorageReadonly}
)

// Transfer sizes
const (
	DownloadChunkSize = 256 * 1024 // 256 KiB
	S3PartSize        = 5 * 1024 * 1024
)

// Listing retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Fetch retry configuration
const (
	DefaultFetchRetries  = 2
	DefaultBackoffUnitMs = 2000
	DefaultWorkerPool    = 10
)

// Schema version
const SchemaVersion = "1.0"

// Drive MIME types
const (
	MimeTypeFolder   = "application/vnd.google-apps.folder"
	MimeTypeShortcut = "application/vnd.google-apps.shortcut"
)

// Session state keys
const (
	StateKeyDrive = "drive_data"
	StateKeyGCS   = "gcs_data"
	StateKeyS3    = "s3_data"
)

// Report source tags
const (
	SourceDrive = "Google Drive"
	SourceGCS   = "GCS (Parallel)"
	SourceS3    = "Amazon S3"
)

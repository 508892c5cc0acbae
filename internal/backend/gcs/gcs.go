package gcs

import (
	"context"
	"path"
	"strings"

	"github.com/dl-alexandre/docloader/internal/api"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dustin/go-humanize"
	"google.golang.org/api/storage/v1"
)

const (
	// Name is the config name of this backend
	Name = "gcs"
	// Scheme prefixes every reference
	Scheme = "gs://"

	listFields = "nextPageToken, items(name, size)"
)

// Backend lists a Cloud Storage prefix and downloads its objects
type Backend struct {
	service       *storage.Service
	client        *api.Client
	policy        api.RetryPolicy
	defaultBucket string
	logger        logging.Logger
}

// Option configures a Backend
type Option func(*Backend)

// WithDefaultBucket lets references omit the scheme and bucket
func WithDefaultBucket(bucket string) Option {
	return func(b *Backend) { b.defaultBucket = bucket }
}

// WithRetryPolicy overrides the per-object fetch retry policy
func WithRetryPolicy(policy api.RetryPolicy) Option {
	return func(b *Backend) { b.policy = policy }
}

// New creates a Cloud Storage backend over an authenticated service
func New(service *storage.Service, client *api.Client, opts ...Option) *Backend {
	b := &Backend{
		service: service,
		client:  client,
		policy:  api.DefaultRetryPolicy(),
		logger:  client.Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string                           { return Name }
func (b *Backend) Source() string                         { return utils.SourceGCS }
func (b *Backend) StateKey() string                       { return utils.StateKeyGCS }
func (b *Backend) Label() string                          { return "GCS" }
func (b *Backend) DefaultDiscipline() pipeline.Discipline { return pipeline.DisciplineParallel }

// Resolve validates a gs://bucket/prefix reference
func (b *Backend) Resolve(ref string) (pipeline.Root, error) {
	bucket, prefix, err := ParseRef(ref, b.defaultBucket)
	if err != nil {
		return pipeline.Root{}, err
	}
	return pipeline.Root{Ref: ref, Bucket: bucket, Path: prefix}, nil
}

// ParseRef splits a reference into bucket and prefix. A non-empty prefix always
// ends in "/". References without the scheme are accepted only when
// defaultBucket is set, and are then read as a prefix inside it.
func ParseRef(ref, defaultBucket string) (bucket, prefix string, err error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, Scheme) {
		rest := strings.TrimPrefix(ref, Scheme)
		bucket, prefix, _ = strings.Cut(rest, "/")
	} else if defaultBucket != "" && !strings.Contains(ref, "://") {
		bucket, prefix = defaultBucket, strings.TrimPrefix(ref, "/")
	} else {
		return "", "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidFolderReference,
			"Invalid GCS URL. Must start with 'gs://'.").
			WithContext("ref", ref).
			Build())
	}

	if bucket == "" {
		return "", "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidFolderReference,
			"Invalid GCS URL. Missing bucket name.").
			WithContext("ref", ref).
			Build())
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// Discover lists every object under the prefix, skipping directory placeholders
func (b *Backend) Discover(ctx context.Context, root pipeline.Root) (pipeline.Inventory, error) {
	reqCtx := api.RequestContextFromContext(ctx, Name, types.RequestTypeList)
	reqCtx.FolderRef = root.Ref

	var entries []types.FileEntry
	pageToken := ""
	for {
		call := b.service.Objects.List(root.Bucket).
			Prefix(root.Path).
			Fields(listFields).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		objects, err := api.ExecuteWithRetry(ctx, b.client, reqCtx, func() (*storage.Objects, error) {
			return call.Do()
		})
		if err != nil {
			return pipeline.Inventory{}, err
		}

		for _, obj := range objects.Items {
			if strings.HasSuffix(obj.Name, "/") {
				continue
			}
			entries = append(entries, types.FileEntry{
				ID:     obj.Name,
				Name:   path.Base(obj.Name),
				Kind:   types.EntryRegular,
				Size:   int64(obj.Size),
				Bucket: root.Bucket,
			})
		}

		if objects.NextPageToken == "" {
			break
		}
		pageToken = objects.NextPageToken
	}

	b.logger.Info("Listed objects",
		logging.F("bucket", root.Bucket),
		logging.F("prefix", root.Path),
		logging.F("count", len(entries)),
		logging.F("traceId", reqCtx.TraceID),
	)
	return pipeline.Inventory{Entries: entries}, nil
}

// Fetch downloads one object with linear-backoff retries
func (b *Backend) Fetch(ctx context.Context, entry types.FileEntry, progress pipeline.Progress) types.FetchResult {
	bucket := entry.Bucket
	if bucket == "" {
		bucket = b.defaultBucket
	}
	reqCtx := api.RequestContextFromContext(ctx, Name, types.RequestTypeDownload, entry.ID)

	b.logger.Debug("Queueing download", logging.F("file", entry.Name))
	res := api.FetchWithRetry(ctx, b.client, reqCtx, entry.Name, b.policy, func(ctx context.Context) ([]byte, error) {
		resp, err := b.service.Objects.Get(bucket, entry.ID).Context(ctx).Download()
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return api.ReadChunked(ctx, resp.Body, entry.Name, resp.ContentLength, progress)
	})
	if res.OK {
		b.logger.Info("Downloaded",
			logging.F("file", entry.Name),
			logging.F("size", humanize.Bytes(uint64(len(res.Payload)))),
		)
	}
	return res
}

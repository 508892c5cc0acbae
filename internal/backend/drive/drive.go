package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/dl-alexandre/docloader/internal/api"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dl-alexandre/docloader/internal/walker"
	"github.com/dustin/go-humanize"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	// Name is the config name of this backend
	Name = "drive"

	listFields   = "nextPageToken, files(id, name, mimeType, size, resourceKey, shortcutDetails(targetId, targetMimeType, targetResourceKey))"
	listPageSize = 1000
)

// Backend walks Drive folders and downloads their files
type Backend struct {
	service *drive.Service
	client  *api.Client
	policy  api.RetryPolicy
	keys    *ResourceKeys
	strict  bool
	logger  logging.Logger
}

// Option configures a Backend
type Option func(*Backend)

// WithStrictListing aborts discovery on the first folder that cannot be listed
func WithStrictListing(strict bool) Option {
	return func(b *Backend) { b.strict = strict }
}

// WithRetryPolicy overrides the per-file fetch retry policy
func WithRetryPolicy(policy api.RetryPolicy) Option {
	return func(b *Backend) { b.policy = policy }
}

// New creates a Drive backend over an authenticated service
func New(service *drive.Service, client *api.Client, opts ...Option) *Backend {
	b := &Backend{
		service: service,
		client:  client,
		policy:  api.DefaultRetryPolicy(),
		keys:    NewResourceKeys(),
		logger:  client.Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string                           { return Name }
func (b *Backend) Source() string                         { return utils.SourceDrive }
func (b *Backend) StateKey() string                       { return utils.StateKeyDrive }
func (b *Backend) Label() string                          { return "Drive" }
func (b *Backend) DefaultDiscipline() pipeline.Discipline { return pipeline.DisciplineSequential }

// ResourceKeys exposes the backend's resource key cache
func (b *Backend) ResourceKeys() *ResourceKeys {
	return b.keys
}

// Resolve parses a Drive folder URL or ID
func (b *Backend) Resolve(ref string) (pipeline.Root, error) {
	folder, err := ParseFolderRef(ref)
	if err != nil {
		return pipeline.Root{}, err
	}
	b.logger.Info("Extracted folder ID", logging.F("folderId", folder.ID))
	return pipeline.Root{Ref: ref, Path: folder.ID, ResourceKey: folder.ResourceKey}, nil
}

// Discover walks the folder tree below root
func (b *Backend) Discover(ctx context.Context, root pipeline.Root) (pipeline.Inventory, error) {
	b.keys.AddKey(root.Path, root.ResourceKey, "url")

	result, err := walker.Walk(ctx, b, root.Path,
		walker.WithStrict(b.strict),
		walker.WithFatal(isCredentialError),
		walker.WithLogger(b.logger.WithContext(ctx)),
	)
	if err != nil {
		if isCredentialError(err) || errors.Is(err, context.Canceled) {
			return pipeline.Inventory{}, err
		}
		return pipeline.Inventory{}, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeListingFailed, err.Error()).
			WithContext("folderId", root.Path).
			Build(), err)
	}
	return pipeline.Inventory{Entries: result.Entries, Skipped: result.Skipped}, nil
}

func isCredentialError(err error) bool {
	return utils.ErrorCode(err) == utils.ErrCodeCredentialsUnavailable
}

// ListChildren lists one folder, following page tokens until exhausted
func (b *Backend) ListChildren(ctx context.Context, folderID string) ([]types.FileEntry, error) {
	reqCtx := api.RequestContextFromContext(ctx, Name, types.RequestTypeList, folderID)
	query := fmt.Sprintf("'%s' in parents and trashed=false", folderID)

	var entries []types.FileEntry
	pageToken := ""
	for {
		call := b.service.Files.List().
			Q(query).
			Spaces("drive").
			Fields(googleapi.Field(listFields)).
			PageSize(listPageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if header := b.keys.BuildHeader(folderID); header != "" {
			call.Header().Set(ResourceKeyHeader, header)
		}

		result, err := api.ExecuteWithRetry(ctx, b.client, reqCtx, func() (*drive.FileList, error) {
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		for _, f := range result.Files {
			if entry, ok := b.convert(f); ok {
				entries = append(entries, entry)
			}
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	b.logger.Debug("Listed folder",
		logging.F("folderId", folderID),
		logging.F("children", len(entries)),
		logging.F("traceId", reqCtx.TraceID),
	)
	return entries, nil
}

// convert maps a Drive file onto an entry. Shortcuts resolve to their target.
func (b *Backend) convert(f *drive.File) (types.FileEntry, bool) {
	b.keys.AddKey(f.Id, f.ResourceKey, "api")

	entry := types.FileEntry{ID: f.Id, Name: f.Name, Kind: types.EntryRegular, Size: f.Size}
	mimeType := f.MimeType
	if mimeType == utils.MimeTypeShortcut {
		if f.ShortcutDetails == nil || f.ShortcutDetails.TargetId == "" {
			return types.FileEntry{}, false
		}
		entry.ID = f.ShortcutDetails.TargetId
		mimeType = f.ShortcutDetails.TargetMimeType
		b.keys.AddKey(entry.ID, f.ShortcutDetails.TargetResourceKey, "api")
	}
	if mimeType == utils.MimeTypeFolder {
		entry.Kind = types.EntryContainer
	}
	return entry, true
}

// Fetch downloads one file with linear-backoff retries
func (b *Backend) Fetch(ctx context.Context, entry types.FileEntry, progress pipeline.Progress) types.FetchResult {
	reqCtx := api.RequestContextFromContext(ctx, Name, types.RequestTypeDownload, entry.ID)
	res := api.FetchWithRetry(ctx, b.client, reqCtx, entry.Name, b.policy, func(ctx context.Context) ([]byte, error) {
		return b.download(ctx, entry, progress)
	})
	if res.OK {
		b.logger.Info("Downloaded",
			logging.F("file", entry.Name),
			logging.F("size", humanize.Bytes(uint64(len(res.Payload)))),
			logging.F("traceId", reqCtx.TraceID),
		)
	}
	return res
}

func (b *Backend) download(ctx context.Context, entry types.FileEntry, progress pipeline.Progress) ([]byte, error) {
	call := b.service.Files.Get(entry.ID).SupportsAllDrives(true).Context(ctx)
	if header := b.keys.BuildHeader(entry.ID); header != "" {
		call.Header().Set(ResourceKeyHeader, header)
	}

	resp, err := call.Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total <= 0 && entry.Size > 0 {
		total = entry.Size
	}
	return api.ReadChunked(ctx, resp.Body, entry.Name, total, progress)
}

package s3

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dl-alexandre/docloader/internal/api"
	apierrors "github.com/dl-alexandre/docloader/internal/errors"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/dustin/go-humanize"
)

const (
	// Name is the config name of this backend
	Name = "s3"
	// Scheme prefixes every reference
	Scheme = "s3://"
)

// API is the part of the S3 client the backend calls
type API interface {
	awss3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// Settings configures the S3 client
type Settings struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxAttempts     int
}

// NewClient loads the AWS default config and verifies that credentials resolve
func NewClient(ctx context.Context, settings Settings) (*awss3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}
	if settings.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(settings.MaxAttempts))
	}
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, credentialError(err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, credentialError(err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func credentialError(err error) error {
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCredentialsUnavailable,
		"AWS credentials could not be loaded: "+err.Error()).
		WithContext("suggestedAction", "set AWS_PROFILE or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY").
		Build(), err)
}

// Backend lists an S3 prefix and downloads its objects
type Backend struct {
	api           API
	downloader    *manager.Downloader
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

// New creates an S3 backend
func New(s3api API, client *api.Client, opts ...Option) *Backend {
	b := &Backend{
		api: s3api,
		downloader: manager.NewDownloader(s3api, func(d *manager.Downloader) {
			d.PartSize = utils.S3PartSize
		}),
		client: client,
		policy: api.DefaultRetryPolicy(),
		logger: client.Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string                           { return Name }
func (b *Backend) Source() string                         { return utils.SourceS3 }
func (b *Backend) StateKey() string                       { return utils.StateKeyS3 }
func (b *Backend) Label() string                          { return "S3" }
func (b *Backend) DefaultDiscipline() pipeline.Discipline { return pipeline.DisciplineParallel }

// Resolve validates an s3://bucket/prefix reference
func (b *Backend) Resolve(ref string) (pipeline.Root, error) {
	bucket, prefix, err := ParseRef(ref, b.defaultBucket)
	if err != nil {
		return pipeline.Root{}, err
	}
	return pipeline.Root{Ref: ref, Bucket: bucket, Path: prefix}, nil
}

// ParseRef splits a reference into bucket and a "/"-terminated prefix
func ParseRef(ref, defaultBucket string) (bucket, prefix string, err error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, Scheme):
		bucket, prefix, _ = strings.Cut(strings.TrimPrefix(ref, Scheme), "/")
	case defaultBucket != "" && !strings.Contains(ref, "://"):
		bucket, prefix = defaultBucket, strings.TrimPrefix(ref, "/")
	default:
		return "", "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidFolderReference,
			"Invalid S3 URL. Must start with 's3://'.").
			WithContext("ref", ref).
			Build())
	}

	if bucket == "" {
		return "", "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidFolderReference,
			"Invalid S3 URL. Missing bucket name.").
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

	input := &awss3.ListObjectsV2Input{Bucket: aws.String(root.Bucket)}
	if root.Path != "" {
		input.Prefix = aws.String(root.Path)
	}

	var entries []types.FileEntry
	paginator := awss3.NewListObjectsV2Paginator(b.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return pipeline.Inventory{}, apierrors.ClassifyAWSError(err, reqCtx, b.logger)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			entries = append(entries, types.FileEntry{
				ID:     key,
				Name:   path.Base(key),
				Kind:   types.EntryRegular,
				Size:   aws.ToInt64(obj.Size),
				Bucket: root.Bucket,
			})
		}
	}

	b.logger.Info("Listed objects",
		logging.F("bucket", root.Bucket),
		logging.F("prefix", root.Path),
		logging.F("count", len(entries)),
		logging.F("traceId", reqCtx.TraceID),
	)
	return pipeline.Inventory{Entries: entries}, nil
}

// Fetch downloads one object with ranged parts and linear-backoff retries
func (b *Backend) Fetch(ctx context.Context, entry types.FileEntry, progress pipeline.Progress) types.FetchResult {
	bucket := entry.Bucket
	if bucket == "" {
		bucket = b.defaultBucket
	}
	reqCtx := api.RequestContextFromContext(ctx, Name, types.RequestTypeDownload, entry.ID)

	res := api.FetchWithRetry(ctx, b.client, reqCtx, entry.Name, b.policy, func(ctx context.Context) ([]byte, error) {
		buf := manager.NewWriteAtBuffer(make([]byte, 0, entry.Size))
		n, err := b.downloader.Download(ctx, buf, &awss3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(entry.ID),
		})
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(entry.Name, n, n)
		}
		return buf.Bytes()[:n], nil
	})
	if res.OK {
		b.logger.Info("Downloaded",
			logging.F("file", entry.Name),
			logging.F("size", humanize.Bytes(uint64(len(res.Payload)))),
		)
	}
	return res
}

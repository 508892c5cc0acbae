// Package backend builds the retrieval backend selected by configuration.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dl-alexandre/docloader/internal/api"
	"github.com/dl-alexandre/docloader/internal/auth"
	"github.com/dl-alexandre/docloader/internal/backend/drive"
	"github.com/dl-alexandre/docloader/internal/backend/gcs"
	"github.com/dl-alexandre/docloader/internal/backend/s3"
	"github.com/dl-alexandre/docloader/internal/config"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/utils"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	storagev1 "google.golang.org/api/storage/v1"
)

// Deps carries what backends need beyond configuration
type Deps struct {
	Logger    logging.Logger
	Transport http.RoundTripper
	// Provider overrides the credential provider derived from config
	Provider auth.Provider
	// KeyStore backs keyring profiles
	KeyStore auth.KeyStore
	// Endpoint overrides the Google API base URL
	Endpoint string
}

// Names lists the supported backends
func Names() []string {
	return []string{config.BackendDrive, config.BackendGCS, config.BackendS3}
}

// ForRef picks the backend implied by a reference's scheme, falling back to name
func ForRef(ref, name string) string {
	switch {
	case strings.HasPrefix(ref, gcs.Scheme):
		return config.BackendGCS
	case strings.HasPrefix(ref, s3.Scheme):
		return config.BackendS3
	case strings.Contains(ref, "drive.google.com"):
		return config.BackendDrive
	}
	return name
}

// New builds the named backend. Credential failures are returned before any
// listing happens, as a *pipeline.IngestError of kind KindCredential carrying
// CREDENTIALS_UNAVAILABLE.
func New(ctx context.Context, name string, cfg *config.Config, deps Deps) (pipeline.Backend, error) {
	b, err := build(ctx, name, cfg, deps)
	if err != nil && utils.ErrorCode(err) == utils.ErrCodeCredentialsUnavailable {
		return nil, &pipeline.IngestError{Kind: pipeline.KindCredential, Err: err}
	}
	return b, err
}

func build(ctx context.Context, name string, cfg *config.Config, deps Deps) (pipeline.Backend, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	client := api.NewClient(cfg.ListRetries, cfg.ListRetryDelayMs, logger)
	policy := cfg.FetchPolicy()

	switch name {
	case config.BackendDrive:
		opts, err := googleOptions(ctx, cfg, deps, utils.ScopesDrive)
		if err != nil {
			return nil, err
		}
		svc, err := drivev3.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		return drive.New(svc, client,
			drive.WithRetryPolicy(policy),
			drive.WithStrictListing(cfg.FailOnListingError),
		), nil

	case config.BackendGCS:
		opts, err := googleOptions(ctx, cfg, deps, utils.ScopesStorage)
		if err != nil {
			return nil, err
		}
		svc, err := storagev1.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage service: %w", err)
		}
		return gcs.New(svc, client,
			gcs.WithRetryPolicy(policy),
			gcs.WithDefaultBucket(cfg.DefaultBucket),
		), nil

	case config.BackendS3:
		s3client, err := s3.NewClient(ctx, s3.Settings{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			MaxAttempts:     cfg.ListRetries + 1,
		})
		if err != nil {
			return nil, err
		}
		return s3.New(s3client, client,
			s3.WithRetryPolicy(policy),
			s3.WithDefaultBucket(cfg.DefaultBucket),
		), nil
	}

	return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
		fmt.Sprintf("unknown backend: %s (must be one of: %s)", name, strings.Join(Names(), ", "))).Build())
}

// Provider returns the credential provider configured for Google backends
func Provider(cfg *config.Config, store auth.KeyStore) auth.Provider {
	return auth.NewProvider(auth.Options{
		KeyringProfile:  cfg.KeyringProfile,
		CredentialsFile: cfg.CredentialsFile,
		Store:           store,
	})
}

func googleOptions(ctx context.Context, cfg *config.Config, deps Deps, scopes []string) ([]option.ClientOption, error) {
	provider := deps.Provider
	if provider == nil {
		provider = Provider(cfg, deps.KeyStore)
	}

	httpClient, err := auth.HTTPClient(ctx, provider, deps.Transport, scopes...)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if deps.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(deps.Endpoint))
	}
	return opts, nil
}

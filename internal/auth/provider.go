package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/dl-alexandre/docloader/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Provider supplies OAuth2 tokens for Google APIs
type Provider interface {
	Name() string
	TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error)
}

// Identity is implemented by providers that know which account they act as
type Identity interface {
	ServiceAccountEmail() string
}

// ADCProvider uses Application Default Credentials
type ADCProvider struct {
	email string
}

func (p *ADCProvider) Name() string { return "application-default" }

func (p *ADCProvider) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	if len(creds.JSON) > 0 {
		var key ServiceAccountKey
		if json.Unmarshal(creds.JSON, &key) == nil {
			p.email = key.ClientEmail
		}
	}
	return creds.TokenSource, nil
}

// ServiceAccountEmail returns the email from the ADC key file, if any
func (p *ADCProvider) ServiceAccountEmail() string { return p.email }

// KeyFileProvider reads a service account key from disk
type KeyFileProvider struct {
	Path  string
	email string
}

func (p *KeyFileProvider) Name() string { return "key-file" }

func (p *KeyFileProvider) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("service account key file not found: %s", p.Path)
	}
	return p.fromJSON(ctx, data, scopes)
}

func (p *KeyFileProvider) fromJSON(ctx context.Context, data []byte, scopes []string) (oauth2.TokenSource, error) {
	key, err := ParseServiceAccountKey(data)
	if err != nil {
		return nil, err
	}
	p.email = key.ClientEmail
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	return creds.TokenSource, nil
}

func (p *KeyFileProvider) ServiceAccountEmail() string { return p.email }

// KeyringProvider reads a service account key saved with `auth import-key`
type KeyringProvider struct {
	Profile string
	Store   KeyStore
	email   string
}

func (p *KeyringProvider) Name() string { return "keyring:" + p.Profile }

func (p *KeyringProvider) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	data, err := p.Store.Load(p.Profile)
	if err != nil {
		return nil, err
	}
	inner := &KeyFileProvider{}
	ts, err := inner.fromJSON(ctx, data, scopes)
	if err != nil {
		return nil, err
	}
	p.email = inner.email
	return ts, nil
}

func (p *KeyringProvider) ServiceAccountEmail() string { return p.email }

// StaticProvider returns a fixed token source
type StaticProvider struct {
	Source oauth2.TokenSource
}

// NewStaticProvider wraps a fixed access token
func NewStaticProvider(accessToken string) *StaticProvider {
	return &StaticProvider{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) TokenSource(context.Context, ...string) (oauth2.TokenSource, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("static provider has no token")
	}
	return p.Source, nil
}

// Options selects a provider
type Options struct {
	KeyringProfile  string
	CredentialsFile string
	Store           KeyStore
}

// NewProvider picks the keyring profile, then the key file, then ADC
func NewProvider(opts Options) Provider {
	switch {
	case opts.KeyringProfile != "" && opts.Store != nil:
		return &KeyringProvider{Profile: opts.KeyringProfile, Store: opts.Store}
	case opts.CredentialsFile != "":
		return &KeyFileProvider{Path: opts.CredentialsFile}
	default:
		return &ADCProvider{}
	}
}

// HTTPClient returns an authorized client layered over base. A token is
// fetched up front so that credential problems surface before any listing.
func HTTPClient(ctx context.Context, provider Provider, base http.RoundTripper, scopes ...string) (*http.Client, error) {
	ts, err := provider.TokenSource(ctx, scopes...)
	if err != nil {
		return nil, CredentialError(provider, err)
	}
	ts = oauth2.ReuseTokenSource(nil, ts)
	if _, err := ts.Token(); err != nil {
		return nil, CredentialError(provider, err)
	}

	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}, nil
}

// CredentialError wraps a provider failure as CREDENTIALS_UNAVAILABLE
func CredentialError(provider Provider, err error) error {
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCredentialsUnavailable,
		fmt.Sprintf("credentials unavailable (%s): %v", provider.Name(), err)).
		WithContext("provider", provider.Name()).
		WithContext("suggestedAction", "run 'gcloud auth application-default login', set credentialsFile, or use 'docloader auth import-key'").
		Build(), err)
}

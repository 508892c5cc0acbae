package gcs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dl-alexandre/docloader/internal/api"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/pipeline"
	testhelpers "github.com/dl-alexandre/docloader/internal/testing"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"
)

type fakeBucket struct {
	mu       sync.Mutex
	name     string
	objects  map[string]string
	failures map[string]int
	prefixes []string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	listPath := "/b/" + f.name + "/o"
	if r.URL.Path == listPath {
		prefix := r.URL.Query().Get("prefix")
		f.prefixes = append(f.prefixes, prefix)

		var names []string
		for name := range f.objects {
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		// two objects per page to exercise continuation
		start := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			start = int(tok[0] - '0')
		}
		end := min(start+2, len(names))
		out := &storage.Objects{}
		for _, name := range names[start:end] {
			out.Items = append(out.Items, testhelpers.TestObject(f.name, name, uint64(len(f.objects[name]))))
		}
		if end < len(names) {
			out.NextPageToken = string(rune('0' + end))
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	object := strings.TrimPrefix(r.URL.Path, listPath+"/")
	if f.failures[object] > 0 {
		f.failures[object]--
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
		return
	}
	body, ok := f.objects[object]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func newTestBackend(t *testing.T, fake *fakeBucket, opts ...Option) *Backend {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	service, err := storage.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	opts = append([]Option{WithRetryPolicy(api.RetryPolicy{RetryCount: 2})}, opts...)
	return New(service, api.NewClient(0, 1, logging.NewNoOpLogger()), opts...)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name          string
		ref           string
		defaultBucket string
		wantBucket    string
		wantPrefix    string
		wantErr       string
	}{
		{"bucket and prefix", "gs://hiring/resumes", "", "hiring", "resumes/", ""},
		{"trailing slash kept", "gs://hiring/resumes/2024/", "", "hiring", "resumes/2024/", ""},
		{"whole bucket", "gs://hiring", "", "hiring", "", ""},
		{"bucket with slash", "gs://hiring/", "", "hiring", "", ""},
		{"default bucket", "resumes", "hiring", "hiring", "resumes/", ""},
		{"missing scheme", "hiring/resumes", "", "", "", "Invalid GCS URL. Must start with 'gs://'."},
		{"wrong scheme", "s3://hiring/resumes", "hiring", "", "", "Invalid GCS URL. Must start with 'gs://'."},
		{"empty bucket", "gs:///resumes", "", "", "", "Invalid GCS URL. Missing bucket name."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := ParseRef(tt.ref, tt.defaultBucket)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, utils.ErrCodeInvalidFolderReference, utils.ErrorCode(err))
				assert.Equal(t, tt.wantErr, utils.AsCLIError(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestBackend_DiscoverExcludesPlaceholders(t *testing.T) {
	fake := &fakeBucket{
		name: "hiring",
		objects: map[string]string{
			"resumes/":              "",
			"resumes/a.txt":         "A",
			"resumes/b.pdf":         "B",
			"resumes/nested/":       "",
			"resumes/nested/c.docx": "C",
			"other/d.txt":           "D",
		},
	}
	b := newTestBackend(t, fake)

	root, err := b.Resolve("gs://hiring/resumes")
	require.NoError(t, err)
	inv, err := b.Discover(context.Background(), root)
	require.NoError(t, err)

	var names, ids []string
	for _, e := range inv.Entries {
		names = append(names, e.Name)
		ids = append(ids, e.ID)
		assert.Equal(t, "hiring", e.Bucket)
		assert.Equal(t, types.EntryRegular, e.Kind)
	}
	assert.Equal(t, []string{"a.txt", "b.pdf", "c.docx"}, names)
	assert.Equal(t, []string{"resumes/a.txt", "resumes/b.pdf", "resumes/nested/c.docx"}, ids)
	assert.Equal(t, []string{"resumes/", "resumes/", "resumes/"}, fake.prefixes)
	assert.Empty(t, inv.Skipped)
}

func TestBackend_DiscoverEmpty(t *testing.T) {
	b := newTestBackend(t, &fakeBucket{name: "hiring", objects: map[string]string{"resumes/": ""}})
	inv, err := b.Discover(context.Background(), pipeline.Root{Bucket: "hiring", Path: "resumes/"})
	require.NoError(t, err)
	assert.Empty(t, inv.Entries)
}

func TestBackend_FetchRetries(t *testing.T) {
	fake := &fakeBucket{
		name:     "hiring",
		objects:  map[string]string{"resumes/a.txt": "alpha"},
		failures: map[string]int{"resumes/a.txt": 2},
	}
	b := newTestBackend(t, fake)

	entry := types.FileEntry{ID: "resumes/a.txt", Name: "a.txt", Bucket: "hiring"}
	res := b.Fetch(context.Background(), entry, nil)
	require.True(t, res.OK, res.Err)
	assert.Equal(t, "alpha", string(res.Payload))
}

func TestBackend_FetchMissing(t *testing.T) {
	b := newTestBackend(t, &fakeBucket{name: "hiring", objects: map[string]string{}})

	res := b.Fetch(context.Background(), types.FileEntry{ID: "resumes/x.txt", Name: "x.txt", Bucket: "hiring"}, nil)
	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "No such object")
}

func TestBackend_DefaultBucket(t *testing.T) {
	fake := &fakeBucket{name: "hiring", objects: map[string]string{"jd/role.txt": "role"}}
	b := newTestBackend(t, fake, WithDefaultBucket("hiring"))

	root, err := b.Resolve("jd")
	require.NoError(t, err)
	assert.Equal(t, "hiring", root.Bucket)

	res := b.Fetch(context.Background(), types.FileEntry{ID: "jd/role.txt", Name: "role.txt"}, nil)
	require.True(t, res.OK, res.Err)
	assert.Equal(t, pipeline.DisciplineParallel, b.DefaultDiscipline())
	assert.Equal(t, "gcs_data", b.StateKey())
	assert.Equal(t, "GCS (Parallel)", b.Source())
}

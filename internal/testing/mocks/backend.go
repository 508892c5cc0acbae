package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dl-alexandre/docloader/internal/pipeline"
	"github.com/dl-alexandre/docloader/internal/types"
)

// MockBackend is a configurable pipeline.Backend for testing
type MockBackend struct {
	NameValue       string
	SourceValue     string
	StateKeyValue   string
	LabelValue      string
	DisciplineValue pipeline.Discipline

	ResolveFunc  func(ref string) (pipeline.Root, error)
	DiscoverFunc func(ctx context.Context, root pipeline.Root) (pipeline.Inventory, error)
	FetchFunc    func(ctx context.Context, entry types.FileEntry) types.FetchResult

	// Payloads answers Fetch by entry ID when FetchFunc is nil
	Payloads map[string][]byte
	// FetchDelay is slept inside every Fetch call
	FetchDelay time.Duration

	mu          sync.Mutex
	fetched     []string
	inFlight    int32
	maxInFlight int32
}

// NewMockBackend returns a flat backend that discovers entries and serves payloads
func NewMockBackend(entries []types.FileEntry, payloads map[string][]byte) *MockBackend {
	return &MockBackend{
		NameValue:       "gcs",
		SourceValue:     "GCS (Parallel)",
		StateKeyValue:   "gcs_data",
		LabelValue:      "GCS",
		DisciplineValue: pipeline.DisciplineParallel,
		DiscoverFunc: func(context.Context, pipeline.Root) (pipeline.Inventory, error) {
			return pipeline.Inventory{Entries: entries}, nil
		},
		Payloads: payloads,
	}
}

func (m *MockBackend) Name() string                           { return m.NameValue }
func (m *MockBackend) Source() string                         { return m.SourceValue }
func (m *MockBackend) StateKey() string                       { return m.StateKeyValue }
func (m *MockBackend) Label() string                          { return m.LabelValue }
func (m *MockBackend) DefaultDiscipline() pipeline.Discipline { return m.DisciplineValue }

// Resolve mocks reference validation
func (m *MockBackend) Resolve(ref string) (pipeline.Root, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ref)
	}
	return pipeline.Root{Ref: ref, Path: ref}, nil
}

// Discover mocks listing
func (m *MockBackend) Discover(ctx context.Context, root pipeline.Root) (pipeline.Inventory, error) {
	if m.DiscoverFunc != nil {
		return m.DiscoverFunc(ctx, root)
	}
	return pipeline.Inventory{}, nil
}

// Fetch mocks a download and records concurrency
func (m *MockBackend) Fetch(ctx context.Context, entry types.FileEntry, progress pipeline.Progress) types.FetchResult {
	current := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&m.maxInFlight)
		if current <= peak || atomic.CompareAndSwapInt32(&m.maxInFlight, peak, current) {
			break
		}
	}

	m.mu.Lock()
	m.fetched = append(m.fetched, entry.ID)
	m.mu.Unlock()

	if m.FetchDelay > 0 {
		time.Sleep(m.FetchDelay)
	}

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, entry)
	}
	payload, ok := m.Payloads[entry.ID]
	if !ok {
		return types.FetchFailure(fmt.Errorf("no payload for %s", entry.ID))
	}
	if progress != nil {
		progress(entry.Name, int64(len(payload)), int64(len(payload)))
	}
	return types.FetchSuccess(payload)
}

// Fetched returns the entry IDs passed to Fetch, in call order
func (m *MockBackend) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// MaxInFlight returns the highest number of concurrent Fetch calls observed
func (m *MockBackend) MaxInFlight() int {
	return int(atomic.LoadInt32(&m.maxInFlight))
}

// MemoryReportStore records every Put for assertions
type MemoryReportStore struct {
	mu      sync.Mutex
	Reports map[string]*types.IngestionReport
	Puts    int
	PutErr  error
}

// NewMemoryReportStore creates an empty recording store
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{Reports: make(map[string]*types.IngestionReport)}
}

// Put records report under key
func (s *MemoryReportStore) Put(_ context.Context, key string, report *types.IngestionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.Puts++
	s.Reports[key] = report
	return nil
}

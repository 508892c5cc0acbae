// Package state keeps the latest ingestion report per session key.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/dl-alexandre/docloader/internal/types"
)

// MemoryPath selects the in-process store
const MemoryPath = ":memory:"

// ErrNotFound is returned when no report is stored under a key
var ErrNotFound = errors.New("no report stored")

// Store holds at most one report per key. Put replaces any previous report.
type Store interface {
	Put(ctx context.Context, key string, report *types.IngestionReport) error
	Get(ctx context.Context, key string) (*types.IngestionReport, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns a SQLite store at path, or a MemoryStore for MemoryPath
func Open(path string) (Store, error) {
	if path == MemoryPath || path == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(path)
}

// MemoryStore keeps serialized copies so callers cannot mutate stored reports
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, report *types.IngestionReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[key] = data
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*types.IngestionReport, error) {
	m.mu.RLock()
	data, ok := m.reports[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var report types.IngestionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (m *MemoryStore) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.reports))
	for k := range m.reports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[key]; !ok {
		return ErrNotFound
	}
	delete(m.reports, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

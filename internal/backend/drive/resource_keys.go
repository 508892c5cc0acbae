package drive

import (
	"strings"
	"sync"
	"time"
)

// ResourceKeyHeader carries resource keys for link-shared items
const ResourceKeyHeader = "X-Goog-Drive-Resource-Keys"

// ResourceKeys caches resource keys learned from URLs and listing responses
type ResourceKeys struct {
	mu    sync.RWMutex
	cache map[string]resourceKeyEntry
}

type resourceKeyEntry struct {
	ResourceKey string `json:"resourceKey"`
	Timestamp   int64  `json:"timestamp"`
	Source      string `json:"source"` // url, api
}

// NewResourceKeys creates an empty cache
func NewResourceKeys() *ResourceKeys {
	return &ResourceKeys{cache: make(map[string]resourceKeyEntry)}
}

// AddKey records the resource key for fileID
func (k *ResourceKeys) AddKey(fileID, resourceKey, source string) {
	if resourceKey == "" {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cache[fileID] = resourceKeyEntry{
		ResourceKey: resourceKey,
		Timestamp:   time.Now().Unix(),
		Source:      source,
	}
}

// GetKey returns the cached key for fileID
func (k *ResourceKeys) GetKey(fileID string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	entry, ok := k.cache[fileID]
	return entry.ResourceKey, ok
}

// BuildHeader renders the header value for the given IDs, or "" when none are known
func (k *ResourceKeys) BuildHeader(fileIDs ...string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var pairs []string
	for _, id := range fileIDs {
		if entry, ok := k.cache[id]; ok {
			pairs = append(pairs, id+"/"+entry.ResourceKey)
		}
	}
	return strings.Join(pairs, ",")
}

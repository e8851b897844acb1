// Package cache memoizes analyzer output keyed by file content. Entries live
// in memory and, when a directory is configured, in JSON files on disk.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
)

// Cache stores analysis results by key. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	mem     map[string][]byte
	dir     string
	ttl     time.Duration
	enabled bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Entry is the on-disk representation of a cached result.
type Entry struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// New creates a cache. An empty dir keeps entries in memory only; ttlHours
// <= 0 means disk entries never expire.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return &Cache{
		mem:     make(map[string][]byte),
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SchemaVersion is bumped whenever the encoding of cached file versions
// changes, which invalidates older entries.
const SchemaVersion = "v1"

// BlobKey names the metrics of one blob analyzed as lang. Blob ids are
// content addressed, so the key stays valid across renames and commits.
func BlobKey(lang, blobID string) string {
	return SchemaVersion + ":" + lang + ":" + blobID
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a cached entry if it exists and is not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	c.mu.RLock()
	data, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return data, true
	}

	if data, ok = c.readDisk(key); ok {
		c.mu.Lock()
		c.mem[key] = data
		c.mu.Unlock()
		c.hits.Add(1)
		return data, true
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in the cache.
func (c *Cache) Set(key string, data []byte) error {
	if !c.Enabled() {
		return nil
	}

	c.mu.Lock()
	c.mem[key] = data
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}

	entryData, err := json.Marshal(Entry{
		Hash:      key,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(key), entryData, 0o600)
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	c.mem = make(map[string][]byte)
	c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) readDisk(key string) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}

	path := c.keyPath(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Hash != key {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		_ = os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// Stats reports cache usage.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() Stats {
	if !c.Enabled() {
		return Stats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.mem),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

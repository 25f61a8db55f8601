package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Cache is a process-wide store of previously computed vectors keyed by a
// content hash of the input text. It is loaded once at startup and written
// back on explicit save, not after every insert.
type Cache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	path    string
	dirty   bool
}

// NewCache creates an empty cache backed by one JSON file per model under
// dir. The model name is sanitized so it is safe as a file name.
func NewCache(dir, modelName string) *Cache {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, modelName)

	return &Cache{
		vectors: make(map[string][]float32),
		path:    filepath.Join(dir, name+".json"),
	}
}

// Key returns the content-hash cache key for a text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for a key, or nil if absent. The returned
// slice must not be mutated by the caller.
func (c *Cache) Get(key string) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vectors[key]
}

// Put stores a vector under a key, marking the cache dirty.
func (c *Cache) Put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[key] = vector
	c.dirty = true
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Load reads the cache file into memory, replacing current contents.
// A missing file is not an error; the cache simply starts empty.
func (c *Cache) Load() error {
	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache %s: %w", c.path, err)
	}
	defer lock.Unlock() //nolint:errcheck

	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache %s: %w", c.path, err)
	}

	vectors := make(map[string][]float32)
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return fmt.Errorf("decode cache %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.vectors = vectors
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Save writes the cache to disk if it has changed since the last save.
// The write goes through a temp file and rename so a crash mid-save never
// leaves a truncated cache.
func (c *Cache) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	raw, err := json.Marshal(c.vectors)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache %s: %w", c.path, err)
	}
	defer lock.Unlock() //nolint:errcheck

	tmp := fmt.Sprintf("%s.tmp.%d", c.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cache %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("replace cache %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

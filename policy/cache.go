package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// embedCache persists chunk embeddings keyed by a content hash of the source
// document, so unchanged files are not re-embedded across restarts. A nil
// cache (empty path) disables persistence.
type embedCache struct {
	mu      sync.Mutex
	path    string
	entries map[string][][]float64 // content hash -> per-chunk embeddings
	dirty   bool
}

func newEmbedCache(path string) *embedCache {
	c := &embedCache{path: path, entries: map[string][][]float64{}}
	if path == "" {
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	// Corrupt cache files are ignored; everything re-embeds.
	_ = json.Unmarshal(data, &c.entries)
	return c
}

func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// lookup returns the cached per-chunk embeddings for a content hash. The
// count must match the chunker's output for the same content or the entry is
// treated as a miss.
func (c *embedCache) lookup(hash string, chunkCount int) ([][]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vecs, ok := c.entries[hash]
	if !ok || len(vecs) != chunkCount {
		return nil, false
	}
	return vecs, true
}

func (c *embedCache) store(hash string, vecs [][]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = vecs
	c.dirty = true
}

// flush writes the cache back to disk. Best effort: an unwritable cache only
// costs re-embedding next start.
func (c *embedCache) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("marshal embed cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write embed cache: %w", err)
	}
	c.dirty = false
	return nil
}

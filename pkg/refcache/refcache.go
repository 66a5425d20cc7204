// Package refcache persists extracted module references keyed by file
// content, so unchanged files skip tree-sitter on repeat scans. The cache is
// an optimization only: every failure path degrades to a miss.
package refcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"

	"github.com/Sumatoshi-tech/deadwood/pkg/jsparse"
)

// DefaultMemoryEntries is the default capacity of the in-memory LRU front.
const DefaultMemoryEntries = 4096

// entryVersion invalidates older on-disk entries when the format changes.
const entryVersion = 1

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// diskEntry is the JSON envelope written to disk, lz4-compressed.
type diskEntry struct {
	Version    int                 `json:"version"`
	References []jsparse.Reference `json:"references"`
}

// Stats holds cache effectiveness counters since the cache was opened.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is a two-level reference cache: an LRU front in memory backed by
// compressed entries on disk. Safe for concurrent use.
type Cache struct {
	dir    string
	mem    *lru.Cache[string, []jsparse.Reference]
	hits   atomic.Int64
	misses atomic.Int64
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("refcache: locate user cache dir: %w", err)
	}

	return filepath.Join(base, "deadwood", "refs"), nil
}

// New opens a cache rooted at dir, creating the directory if needed.
// entries bounds the in-memory front; non-positive values use the default.
func New(dir string, entries int) (*Cache, error) {
	if entries <= 0 {
		entries = DefaultMemoryEntries
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("refcache: create cache dir: %w", err)
	}

	mem, err := lru.New[string, []jsparse.Reference](entries)
	if err != nil {
		return nil, fmt.Errorf("refcache: %w", err)
	}

	return &Cache{dir: dir, mem: mem}, nil
}

// Key derives the cache key for file content parsed with a given grammar.
// The same bytes under a different grammar hash to a different key.
func Key(language string, content []byte) string {
	h := xxh3.New()
	_, _ = h.WriteString(language)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)

	return strconv.FormatUint(h.Sum64(), 16)
}

// Get returns the cached references for a key. Files without references
// cache as an empty non-nil slice, distinct from a miss.
func (c *Cache) Get(key string) ([]jsparse.Reference, bool) {
	if refs, ok := c.mem.Get(key); ok {
		c.hits.Add(1)

		return refs, true
	}

	raw, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		c.misses.Add(1)

		return nil, false
	}

	data, err := decompress(raw)
	if err != nil {
		c.misses.Add(1)

		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Version != entryVersion {
		c.misses.Add(1)

		return nil, false
	}

	refs := entry.References
	if refs == nil {
		refs = []jsparse.Reference{}
	}

	c.mem.Add(key, refs)
	c.hits.Add(1)

	return refs, true
}

// Put stores the references for a key in memory and on disk.
func (c *Cache) Put(key string, refs []jsparse.Reference) error {
	if refs == nil {
		refs = []jsparse.Reference{}
	}

	c.mem.Add(key, refs)

	data, err := json.Marshal(diskEntry{Version: entryVersion, References: refs})
	if err != nil {
		return fmt.Errorf("refcache: encode entry: %w", err)
	}

	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("refcache: compress entry: %w", err)
	}

	if err := os.WriteFile(c.entryPath(key), compressed, filePerm); err != nil {
		return fmt.Errorf("refcache: write entry: %w", err)
	}

	return nil
}

// Stats returns hit and miss counters accumulated since New.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Clear drops every entry, in memory and on disk.
func (c *Cache) Clear() error {
	c.mem.Purge()

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("refcache: clear cache dir: %w", err)
	}

	if err := os.MkdirAll(c.dir, dirPerm); err != nil {
		return fmt.Errorf("refcache: recreate cache dir: %w", err)
	}

	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".lz4")
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

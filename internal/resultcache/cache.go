package resultcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"loudscan/internal/logging"
	"loudscan/internal/measure"
)

// Entry pairs a cache key with its stored measurement, for listings.
type Entry struct {
	Key         string
	Measurement measure.Measurement
}

// Cache provides thread-safe access to measured results keyed by file stem.
type Cache struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]measure.Measurement
}

// Load reads a snapshot into a new cache. A missing file yields an
// empty cache; an unreadable or malformed file is an error, because a
// corrupt snapshot must never be silently replaced with partial new
// data. Callers abort the run on that error.
func Load(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "resultcache")

	c := &Cache{
		logger:  logger,
		entries: make(map[string]measure.Measurement),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	logger.Debug("loaded result cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String(logging.FieldCache, path))

	return c, nil
}

// Contains reports whether key already has a stored measurement.
func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, found := c.entries[key]
	return found
}

// TryInsert stores m under key unless the key is already present. The
// first writer wins; later attempts report false and change nothing.
func (c *Cache) TryInsert(key string, m measure.Measurement) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = m

	c.logger.Debug("cached measurement",
		logging.String(logging.FieldKey, key),
		logging.Float64("loudness", m.Loudness),
		logging.Float64("energy", m.Energy))

	return true
}

// Len returns the number of cached measurements.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Entries returns all cached results sorted by key.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for key, m := range c.entries {
		entries = append(entries, Entry{Key: key, Measurement: m})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	return entries
}

// Remove deletes one key and reports whether it was present. Callers
// persist the change with Snapshot.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		return false
	}
	delete(c.entries, key)

	c.logger.Debug("removed cached measurement", logging.String(logging.FieldKey, key))
	return true
}

// Clear drops every entry and reports how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]measure.Measurement)

	c.logger.Debug("cleared result cache", logging.Int("entry_count", removed))
	return removed
}

// Snapshot serializes the full mapping to path, replacing prior
// content. The read lock covers serialization, so concurrent inserts
// see a consistent point-in-time view, and the write goes through a
// temp file in the target directory followed by a rename.
func (c *Cache) Snapshot(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// encoding/json emits map keys in sorted order, which keeps
	// snapshots diffable across runs.
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp snapshot: %w", err)
	}

	return nil
}

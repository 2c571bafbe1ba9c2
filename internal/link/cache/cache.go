// Package cache implements an optional incremental-parse cache for
// internal/link/incorporate.Parse results, keyed by each object file's
// modification time and size. It is disabled unless a caller explicitly
// opens one (the linker's default is a fresh parse every run); grounded on
// the teacher's pkg/result/checkpoint.go gob-backed save/load pair,
// generalized from a single search checkpoint to a keyed map of entries.
package cache

import (
	"encoding/gob"
	"os"
	"time"

	"github.com/oisee/x86link/internal/link/incorporate"
)

// entry is one cached module, plus the file stat fields that decide
// whether the cache entry is still fresh.
type entry struct {
	ModTime int64
	Size    int64
	Module  *incorporate.Module
}

// Cache is a gob-backed map from object file path to its last-parsed
// Module, loaded once at Open and flushed once at Save.
type Cache struct {
	path    string
	entries map[string]entry
	dirty   bool
}

// Open loads path if it exists, or returns an empty cache that will
// create it on the first Save. A corrupt or unreadable cache file is not
// fatal: Open falls back to starting fresh, since the cache is purely an
// optimization and never the source of truth for a link.
func Open(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]entry)}
	f, err := os.Open(path)
	if err != nil {
		return c
	}
	defer f.Close()

	var loaded map[string]entry
	if err := gob.NewDecoder(f).Decode(&loaded); err == nil {
		c.entries = loaded
	}
	return c
}

// Lookup returns the cached Module for objPath if present and still
// fresh against the given modification time and size, and a hit flag.
func (c *Cache) Lookup(objPath string, modTime time.Time, size int64) (*incorporate.Module, bool) {
	e, ok := c.entries[objPath]
	if !ok || e.ModTime != modTime.UnixNano() || e.Size != size {
		return nil, false
	}
	return e.Module, true
}

// Store records m as objPath's parsed result under the given stat fields.
func (c *Cache) Store(objPath string, modTime time.Time, size int64, m *incorporate.Module) {
	c.entries[objPath] = entry{ModTime: modTime.UnixNano(), Size: size, Module: m}
	c.dirty = true
}

// Save writes the cache back to disk if anything changed since Open.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}
	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(c.entries)
}

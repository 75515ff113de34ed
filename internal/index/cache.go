package index

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// CacheFormatVersion is bumped whenever the Snapshot layout changes.
	CacheFormatVersion = 1

	cacheMagic = "dupefinder-snapshot"
)

// ErrCorruptCache is returned when the cache artifact exists but cannot be
// decoded. The operator has to invalidate the cache to rebuild.
var ErrCorruptCache = errors.New("index cache is corrupt")

// cacheFile is the on-disk envelope around a snapshot.
type cacheFile struct {
	Magic    string
	Version  int
	Snapshot *Snapshot
}

// Cache persists a Snapshot to a single file so later runs can skip the
// record scan. It never decides on its own that the stored snapshot is
// stale.
type Cache struct {
	path string
}

// NewCache creates a cache backed by the file at path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache artifact path.
func (c *Cache) Path() string {
	return c.path
}

// ManifestPath returns the path of the manifest written next to the cache.
func (c *Cache) ManifestPath() string {
	return c.path + ManifestSuffix
}

// LockPath returns the path of the lock file guarding rebuilds.
func (c *Cache) LockPath() string {
	return c.path + ".lock"
}

// Exists reports whether a cache artifact is present.
func (c *Cache) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Load reads the stored snapshot. The boolean is false when no artifact
// exists. Any decode failure yields ErrCorruptCache.
func (c *Cache) Load() (*Snapshot, bool, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open index cache: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cf cacheFile
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&cf); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorruptCache, c.path, err)
	}
	if cf.Magic != cacheMagic || cf.Snapshot == nil {
		return nil, false, fmt.Errorf("%w: %s: not a snapshot file", ErrCorruptCache, c.path)
	}
	if cf.Version != CacheFormatVersion {
		return nil, false, fmt.Errorf("%w: %s: format version %d, want %d", ErrCorruptCache, c.path, cf.Version, CacheFormatVersion)
	}

	cf.Snapshot.ensureMaps()
	return cf.Snapshot, true, nil
}

// Store writes the snapshot atomically: it is encoded to a temporary file
// which is then renamed over the artifact. An interrupted run leaves at
// most a stray temporary file behind.
func (c *Cache) Store(s *Snapshot) (err error) {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache temp file: %w", err)
	}
	tempPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	cf := cacheFile{Magic: cacheMagic, Version: CacheFormatVersion, Snapshot: s}
	if err := gob.NewEncoder(w).Encode(&cf); err != nil {
		return fmt.Errorf("failed to encode index cache: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write index cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync index cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index cache: %w", err)
	}

	if err := os.Rename(tempPath, c.path); err != nil {
		return fmt.Errorf("failed to rename index cache: %w", err)
	}
	return nil
}

// Invalidate removes the cache artifact and its manifest. Removing a cache
// that does not exist is not an error.
func (c *Cache) Invalidate() error {
	for _, p := range []string{c.path, c.ManifestPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

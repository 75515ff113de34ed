package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestSuffix is appended to the cache path to name the manifest
	ManifestSuffix = ".manifest.json"
)

// Manifest describes the snapshot currently held in the cache. It is
// informational only: the cache is reused whether or not a manifest exists.
type Manifest struct {
	Version  int            `json:"version"`
	RunID    string         `json:"run_id"`
	BuiltAt  time.Time      `json:"built_at"`
	Source   string         `json:"source"`
	Records  int            `json:"records"`
	Buckets  map[string]int `json:"buckets"`
	Skipped  map[string]int `json:"skipped,omitempty"`
	Duration string         `json:"duration,omitempty"`
}

// NewManifest creates a manifest for a freshly built snapshot.
func NewManifest(runID, source string, s *Snapshot, stats BuildStats, took time.Duration) *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		RunID:   runID,
		BuiltAt: s.BuiltAt,
		Source:  source,
		Records: s.Records,
		Buckets: s.BucketCounts(),
		Skipped: map[string]int{
			"no_id":         stats.NoID,
			"no_address":    stats.NoAddress,
			"no_gps":        stats.NoGPS,
			"duplicate_ids": stats.DuplicateIDs,
		},
		Duration: took.Round(time.Millisecond).String(),
	}
}

// LoadManifest reads a manifest from disk. It returns nil without error
// when no manifest exists.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Buckets == nil {
		manifest.Buckets = make(map[string]int)
	}

	return &manifest, nil
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

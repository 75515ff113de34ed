package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sha1n/dupefinder/internal/domain"
)

// Source is a record store that can be scanned once, in full.
type Source interface {
	Scan(ctx context.Context, fn func(domain.Record) error) error
}

// BuildStats reports what a build scanned and skipped.
type BuildStats struct {
	Scanned      int
	Indexed      int
	NoID         int
	NoAddress    int
	NoGPS        int
	DuplicateIDs int
}

// Builder scans a record source and produces a Snapshot.
type Builder struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder creates a builder logging to the given logger, or to the
// default logger when nil.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger: logger,
		now:    time.Now,
	}
}

// Build performs one linear scan of the source.
func (b *Builder) Build(ctx context.Context, src Source) (*Snapshot, BuildStats, error) {
	snapshot := NewSnapshot()
	seen := make(map[string]struct{})
	var stats BuildStats

	err := src.Scan(ctx, func(r domain.Record) error {
		stats.Scanned++

		if r.ID == "" {
			stats.NoID++
			b.logger.Debug("Skipping record without identifier", "name", r.Name)
			return nil
		}
		if _, dup := seen[r.ID]; dup {
			stats.DuplicateIDs++
			b.logger.Debug("Skipping record with duplicate identifier", "id", r.ID)
			return nil
		}
		seen[r.ID] = struct{}{}

		if !snapshot.Add(r) {
			stats.NoAddress++
			b.logger.Debug("Skipping record without address", "id", r.ID)
			return nil
		}
		if r.GPS == nil {
			stats.NoGPS++
			b.logger.Debug("Record has no coordinates, excluded from name index", "id", r.ID)
		}
		stats.Indexed++
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("record scan failed: %w", err)
	}

	snapshot.BuiltAt = b.now().UTC()

	b.logger.Info("Index built",
		"scanned", stats.Scanned,
		"indexed", stats.Indexed,
		"no_id", stats.NoID,
		"no_address", stats.NoAddress,
		"no_gps", stats.NoGPS,
		"duplicate_ids", stats.DuplicateIDs,
	)
	return snapshot, stats, nil
}

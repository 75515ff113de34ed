// Package finder wires the record store, the cached index snapshot, the
// duplicate detector and the reporter together.
package finder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/detect"
	"github.com/sha1n/dupefinder/internal/domain"
	"github.com/sha1n/dupefinder/internal/index"
	"github.com/sha1n/dupefinder/internal/report"
)

// Source is a record store the service can scan and describe.
type Source interface {
	index.Source
	Count(ctx context.Context) (int, error)
	Describe() string
}

// Service coordinates snapshot caching, detection and reporting.
type Service struct {
	settings *config.Settings
	source   Source
	cache    *index.Cache
	lock     *index.FileLock
	detector *detect.Detector
	logger   *slog.Logger
	newRunID func() string

	buildMu     sync.Mutex
	rebuildOnce sync.Once
	rebuildErr  error

	searchMu sync.Mutex
	search   bleve.Index
}

// NewService creates a new finder service over source.
func NewService(settings *config.Settings, source Source, logger *slog.Logger) (*Service, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := index.NewCache(settings.Cache.Path)
	return &Service{
		settings: settings,
		source:   source,
		cache:    cache,
		lock:     index.NewFileLock(cache.LockPath()),
		detector: detect.New(detect.WithNameDistance(settings.Detect.NameDistance)),
		logger:   logger,
		newRunID: uuid.NewString,
	}, nil
}

// Snapshot returns the cached index snapshot, building and storing it when
// the cache is empty. Concurrent runs sharing a cache path build once: the
// run that loses the lock waits for the winner and reuses its snapshot.
// A corrupt cache is returned as an error and never rebuilt implicitly.
func (s *Service) Snapshot(ctx context.Context) (*index.Snapshot, error) {
	s.rebuildOnce.Do(func() {
		if s.settings.Cache.Rebuild {
			s.logger.Info("Rebuild requested, invalidating index cache", "path", s.cache.Path())
			s.rebuildErr = s.InvalidateCache()
		}
	})
	if s.rebuildErr != nil {
		return nil, s.rebuildErr
	}

	if snap, ok, err := s.loadCached(); err != nil || ok {
		return snap, err
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	acquired, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !acquired {
		s.logger.Info("Another run is building the index, waiting for completion")
		if err := s.lock.Lock(ctx, s.settings.Cache.LockTimeout); err != nil {
			return nil, fmt.Errorf("failed waiting for index build: %w", err)
		}
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("Failed to unlock", "error", err)
		}
	}()

	// whoever held the lock before us may have stored a snapshot
	if snap, ok, err := s.loadCached(); err != nil || ok {
		return snap, err
	}

	return s.build(ctx)
}

func (s *Service) loadCached() (*index.Snapshot, bool, error) {
	snap, ok, err := s.cache.Load()
	if err != nil {
		return nil, false, err
	}
	if ok {
		s.logger.Info("Using cached index", "path", s.cache.Path(), "records", snap.Records, "built_at", snap.BuiltAt)
	}
	return snap, ok, nil
}

func (s *Service) build(ctx context.Context) (*index.Snapshot, error) {
	runID := s.newRunID()
	logger := s.logger.With("run_id", runID)
	start := time.Now()

	if n, err := s.source.Count(ctx); err != nil {
		logger.Warn("Failed to count records", "error", err)
	} else {
		logger.Info("Building index", "source", s.source.Describe(), "records", n)
	}
	snap, stats, err := index.NewBuilder(logger).Build(ctx, s.source)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Store(snap); err != nil {
		return nil, fmt.Errorf("failed to store index cache: %w", err)
	}

	manifest := index.NewManifest(runID, s.source.Describe(), snap, stats, time.Since(start))
	if err := manifest.Save(s.cache.ManifestPath()); err != nil {
		logger.Warn("Failed to save index manifest", "error", err)
	}

	logger.Info("Index cached", "path", s.cache.Path(), "records", snap.Records)
	return snap, nil
}

// FindDuplicates returns every duplicate candidate in discovery order.
func (s *Service) FindDuplicates(ctx context.Context) ([]domain.Candidate, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.detector.Detect(snap)
	if err != nil {
		return nil, fmt.Errorf("duplicate detection failed: %w", err)
	}

	s.logger.Info("Duplicate detection complete", "candidates", result.Len(), "name_distance", s.detector.NameDistance())
	return result.Candidates(), nil
}

// Run finds duplicates, renders them as a table to out and writes the
// export file.
func (s *Service) Run(ctx context.Context, out io.Writer) error {
	candidates, err := s.FindDuplicates(ctx)
	if err != nil {
		return err
	}

	if err := report.WriteTable(out, candidates); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := report.WriteExport(s.settings.Export.Path, candidates); err != nil {
		return err
	}

	s.logger.Info("Duplicates exported", "path", s.settings.Export.Path, "count", len(candidates))
	return nil
}

// InvalidateCache deletes the cached snapshot so the next run rescans.
func (s *Service) InvalidateCache() error {
	if err := s.cache.Invalidate(); err != nil {
		return err
	}
	s.logger.Info("Index cache invalidated", "path", s.cache.Path())
	return nil
}

// Manifest returns the manifest of the cached snapshot, or nil when none
// has been written.
func (s *Service) Manifest() (*index.Manifest, error) {
	return index.LoadManifest(s.cache.ManifestPath())
}

// Settings returns the service settings.
func (s *Service) Settings() *config.Settings {
	return s.settings
}

// Close releases all resources.
func (s *Service) Close() error {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	if s.search != nil {
		if err := s.search.Close(); err != nil {
			return fmt.Errorf("failed to close search index: %w", err)
		}
		s.search = nil
	}
	return nil
}

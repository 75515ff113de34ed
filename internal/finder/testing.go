package finder

import (
	"context"
	"sync"

	"github.com/sha1n/dupefinder/internal/domain"
)

// StaticSource is an in-memory record source that counts its scans.
// This is exported for use in tests of dependent packages.
type StaticSource struct {
	Records []domain.Record
	Err     error

	mu    sync.Mutex
	scans int
}

// NewStaticSource creates a source over records.
func NewStaticSource(records ...domain.Record) *StaticSource {
	return &StaticSource{Records: records}
}

// Scan passes every record with a non-empty address to fn.
func (s *StaticSource) Scan(ctx context.Context, fn func(domain.Record) error) error {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	for _, r := range s.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Address.IsEmpty() {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records with a non-empty address.
func (s *StaticSource) Count(ctx context.Context) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	n := 0
	for _, r := range s.Records {
		if !r.Address.IsEmpty() {
			n++
		}
	}
	return n, nil
}

// Describe returns a fixed description.
func (s *StaticSource) Describe() string {
	return "static"
}

// Scans returns how many times the source was scanned.
func (s *StaticSource) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

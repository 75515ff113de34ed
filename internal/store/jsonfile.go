package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sha1n/dupefinder/internal/domain"
)

// JSONFileStore reads records from a JSON array file, such as an export of
// the record collection. The file is streamed, never loaded whole.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore returns a store over the file at path.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Describe returns a short description of the store for logs and manifests.
func (s *JSONFileStore) Describe() string {
	return DriverJSON + ":" + s.path
}

// Close is a no-op; the file is opened per scan.
func (s *JSONFileStore) Close() error {
	return nil
}

// Count returns the number of records with a non-empty address.
func (s *JSONFileStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.Scan(ctx, func(domain.Record) error {
		n++
		return nil
	})
	return n, err
}

// Scan streams every record with a non-empty address to fn, in file order.
func (s *JSONFileStore) Scan(ctx context.Context, fn func(domain.Record) error) error {
	return s.Each(ctx, func(r domain.Record) error {
		if r.Address.IsEmpty() {
			return nil
		}
		return fn(r)
	})
}

// Each streams every record of the file to fn, in file order.
func (s *JSONFileStore) Each(ctx context.Context, fn func(domain.Record) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open record file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(bufio.NewReader(f))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read record file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return errors.New("record file must contain a JSON array")
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var r domain.Record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("invalid record at position %d: %w", i, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read record file: %w", err)
	}
	return nil
}

// WriteJSONFile writes records as a pretty-printed JSON array.
func WriteJSONFile(path string, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Package store reads business records from the record store.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/domain"
)

// Supported store drivers
const (
	DriverSQLite   = config.StoreDriverSQLite
	DriverPostgres = config.StoreDriverPostgres
	DriverJSON     = config.StoreDriverJSON
)

// ErrUnknownDriver is returned by Open for an unsupported driver name
var ErrUnknownDriver = errors.New("unknown store driver")

// Store is a record store supporting a projected bulk read of every record
// with a non-empty address, and a count of those records.
type Store interface {
	Scan(ctx context.Context, fn func(domain.Record) error) error
	Count(ctx context.Context) (int, error)
	Describe() string
	Close() error
}

// Open opens the store described by the settings.
func Open(ctx context.Context, s config.StoreSettings) (Store, error) {
	switch s.Driver {
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, s.Driver, s.DSN, s.Table)
	case DriverJSON:
		return NewJSONFileStore(s.File), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, s.Driver)
	}
}

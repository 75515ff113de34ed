package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/domain"
	_ "modernc.org/sqlite"
)

// DefaultTable is the record table used when none is configured
const DefaultTable = config.DefaultTable

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// recordColumns is the projection read for every record, in scan order.
var recordColumns = []string{
	"id", "name", "phone_number", "siret",
	"street", "city", "zip_code", "country",
	"latitude", "longitude",
}

// SQLStore reads records from a table through database/sql. It works with
// the sqlite (modernc.org/sqlite) and postgres (lib/pq) drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
	table  string
}

// OpenSQL opens and pings a database and returns a store over table.
func OpenSQL(ctx context.Context, driver, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// a single connection keeps in-memory databases consistent
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	s, err := NewSQLStore(db, driver, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, driver, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &SQLStore{db: db, driver: driver, table: table}, nil
}

// Describe returns a short description of the store for logs and manifests.
func (s *SQLStore) Describe() string {
	return s.driver + ":" + s.table
}

// DB returns the underlying database handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// quotedTable returns the table name with every part double-quoted.
func (s *SQLStore) quotedTable() string {
	parts := strings.Split(s.table, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

const nonEmptyAddress = `(COALESCE(street, '') <> '' OR COALESCE(city, '') <> '' OR COALESCE(zip_code, '') <> '' OR COALESCE(country, '') <> '')`

// Count returns the number of records with a non-empty address.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.quotedTable(), nonEmptyAddress)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return n, nil
}

// Scan streams every record with a non-empty address to fn, in id order.
// Scanning stops at the first error returned by fn.
func (s *SQLStore) Scan(ctx context.Context, fn func(domain.Record) error) (err error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY id`,
		strings.Join(recordColumns, ", "), s.quotedTable(), nonEmptyAddress)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("scan query failed: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		var (
			id, name, phone, siret     sql.NullString
			street, city, zip, country sql.NullString
			lat, lng                   sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &phone, &siret, &street, &city, &zip, &country, &lat, &lng); err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		r := domain.Record{
			ID:          id.String,
			Name:        name.String,
			PhoneNumber: phone.String,
			TaxID:       siret.String,
			Address: domain.Address{
				Street:  street.String,
				City:    city.String,
				ZipCode: zip.String,
				Country: country.String,
			},
		}
		if lat.Valid && lng.Valid {
			r.GPS = &domain.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
		}

		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CreateTable creates the record table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		phone_number TEXT,
		siret TEXT,
		street TEXT,
		city TEXT,
		zip_code TEXT,
		country TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION
	)`, s.quotedTable())
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Put inserts or replaces records by id in a single transaction.
func (s *SQLStore) Put(ctx context.Context, records []domain.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, len(recordColumns))
	updates := make([]string, 0, len(recordColumns)-1)
	for i, c := range recordColumns {
		placeholders[i] = s.placeholder(i + 1)
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		s.quotedTable(), strings.Join(recordColumns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		var lat, lng sql.NullFloat64
		if r.GPS != nil {
			lat = sql.NullFloat64{Float64: r.GPS.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: r.GPS.Longitude, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Name, nullString(r.PhoneNumber), nullString(r.TaxID),
			nullString(r.Address.Street), nullString(r.Address.City),
			nullString(r.Address.ZipCode), nullString(r.Address.Country),
			lat, lng,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

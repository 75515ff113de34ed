package testkit

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sha1n/dupefinder/internal/app"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/domain"
	"github.com/sha1n/dupefinder/internal/store"
	"github.com/spf13/pflag"
)

// Property names published by SQLiteStore.Start
const (
	PropStoreDriver = "store.driver"
	PropStoreDSN    = "store.dsn"
	PropStoreTable  = "store.table"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

// Start starts services in order. When one fails, those already started
// are stopped again and the error names the failing service.
func (e *testEnvImpl) Start() (map[string]any, error) {
	for i, s := range e.services {
		props, err := s.Start()
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = e.services[j].Stop()
			}
			return nil, fmt.Errorf("failed to start %s: %w", s.GetName(), err)
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

// Stop stops services in reverse order and returns the last error.
func (e *testEnvImpl) Stop() error {
	var lastErr error
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// SQLiteStore is a Service backed by a sqlite record store in a temporary
// directory, seeded with Records on Start.
type SQLiteStore struct {
	Dir     string
	Table   string
	Records []domain.Record

	dsn string
}

// NewSQLiteStore creates a sqlite store service under dir.
func NewSQLiteStore(dir string, records ...domain.Record) *SQLiteStore {
	return &SQLiteStore{Dir: dir, Table: config.DefaultTable, Records: records}
}

func (s *SQLiteStore) Start() (map[string]any, error) {
	ctx := context.Background()
	s.dsn = filepath.Join(s.Dir, "records.db")

	st, err := store.OpenSQL(ctx, store.DriverSQLite, s.dsn, s.Table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	if err := st.CreateTable(ctx); err != nil {
		return nil, err
	}
	if err := st.Put(ctx, s.Records); err != nil {
		return nil, err
	}

	return map[string]any{
		PropStoreDriver: store.DriverSQLite,
		PropStoreDSN:    s.dsn,
		PropStoreTable:  s.Table,
	}, nil
}

func (s *SQLiteStore) Stop() error {
	if s.dsn == "" {
		return nil
	}
	if err := os.Remove(s.dsn); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *SQLiteStore) GetName() string {
	return "sqlite-store"
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int    // Uses free port if 0
	Transport string // Defaults to "sse"
	AuthType  string // Defaults to "none"
	Host      string // Defaults to "localhost"

	StoreDriver string // Left unset if empty
	StoreDSN    string
	StoreTable  string
	StoreFile   string
	CachePath   string
	ExportPath  string
}

// NewTestFlags creates a configured pflag.FlagSet for testing. It carries
// every flag of the find-duplicates, import and serve commands.
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterServeFlags(flags)
	flags.StringP("export-path", "o", "", "")

	port := 0
	transport := "sse"
	authType := "none"
	host := "localhost"

	if opts == nil {
		opts = &FlagOptions{}
	}
	if opts.Port != 0 {
		port = opts.Port
	}
	if opts.Transport != "" {
		transport = opts.Transport
	}
	if opts.AuthType != "" {
		authType = opts.AuthType
	}
	if opts.Host != "" {
		host = opts.Host
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("transport", transport)
	_ = flags.Set("auth-type", authType)
	_ = flags.Set("host", host)

	optional := map[string]string{
		"store-driver": opts.StoreDriver,
		"store-dsn":    opts.StoreDSN,
		"store-table":  opts.StoreTable,
		"store-file":   opts.StoreFile,
		"cache-path":   opts.CachePath,
		"export-path":  opts.ExportPath,
	}
	for name, value := range optional {
		if value != "" {
			_ = flags.Set(name, value)
		}
	}

	return flags
}

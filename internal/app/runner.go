package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/domain"
	"github.com/sha1n/dupefinder/internal/finder"
	"github.com/sha1n/dupefinder/internal/index"
	mcputil "github.com/sha1n/dupefinder/internal/mcp"
	"github.com/sha1n/dupefinder/internal/store"
	"github.com/spf13/pflag"
)

// ImportBatchSize is the number of records written per transaction by RunImport
const ImportBatchSize = 1000

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	OpenStore         func(context.Context, config.StoreSettings) (store.Store, error)
	StartSSEServer    func(*mcp.Server, *finder.Service, *config.Settings) error
	CreateServer      func(*config.Settings, *finder.Service) *mcp.Server
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
	Stdout            io.Writer     // Optional: report output, defaults to os.Stdout
	LogOutput         io.Writer     // Optional: log output, defaults to os.Stderr
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		OpenStore:      store.Open,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// loadSettings loads and validates settings, then installs the default logger.
func loadSettings(params RunParams, flags *pflag.FlagSet, validate func(*config.Settings) error) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLogLevel(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to keep stdout for the report
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	return settings, nil
}

// openFinder opens the record store and creates the finder service over it.
func openFinder(ctx context.Context, params RunParams, settings *config.Settings) (*finder.Service, func(), error) {
	src, err := params.OpenStore(ctx, settings.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record store: %w", err)
	}

	svc, err := finder.NewService(settings, src, slog.Default())
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close finder service", "error", err)
		}
		if err := src.Close(); err != nil {
			slog.Error("Failed to close record store", "error", err)
		}
	}
	return svc, cleanup, nil
}

// RunFindDuplicates detects duplicates, prints the report and writes the export.
func RunFindDuplicates(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := loadSettings(params, flags, params.ValidSettings)
	if err != nil {
		return err
	}

	slog.Info("Finding duplicates", "version", version)
	config.Log(settings)

	svc, cleanup, err := openFinder(ctx, params, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	out := params.Stdout
	if out == nil {
		out = os.Stdout
	}
	return svc.Run(ctx, out)
}

// RunInvalidateCache deletes the index cache and its manifest.
func RunInvalidateCache(ctx context.Context, params RunParams, flags *pflag.FlagSet) error {
	settings, err := loadSettings(params, flags, config.ValidateCacheSettings)
	if err != nil {
		return err
	}

	cache := index.NewCache(settings.Cache.Path)
	lock := index.NewFileLock(cache.LockPath())

	timeout := settings.Cache.LockTimeout
	if timeout <= 0 {
		timeout = config.DefaultLockTimeout
	}

	// never pull the cache from under a run that is building it
	if err := lock.Lock(ctx, timeout); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if !cache.Exists() {
		slog.Info("No index cache to invalidate", "path", cache.Path())
		return cache.Invalidate()
	}
	if err := cache.Invalidate(); err != nil {
		return err
	}
	slog.Info("Index cache invalidated", "path", cache.Path())
	return nil
}

// RunImport loads a JSON array of records into the configured SQL store.
func RunImport(ctx context.Context, params RunParams, flags *pflag.FlagSet, from string) error {
	settings, err := loadSettings(params, flags, params.ValidSettings)
	if err != nil {
		return err
	}
	if from == "" {
		return errors.New("import requires a source file (--from)")
	}

	src, err := params.OpenStore(ctx, settings.Store)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, ok := src.(*store.SQLStore)
	if !ok {
		return fmt.Errorf("import requires a sql store driver, got %q", settings.Store.Driver)
	}

	if err := dst.CreateTable(ctx); err != nil {
		return err
	}

	imported := 0
	batch := make([]domain.Record, 0, ImportBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.Put(ctx, batch); err != nil {
			return err
		}
		imported += len(batch)
		slog.Debug("Imported batch", "size", len(batch), "total", imported)
		batch = batch[:0]
		return nil
	}

	err = store.NewJSONFileStore(from).Each(ctx, func(r domain.Record) error {
		if r.ID == "" {
			slog.Warn("Skipping record without identifier", "name", r.Name)
			return nil
		}
		batch = append(batch, r)
		if len(batch) >= ImportBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	slog.Info("Records imported", "count", imported, "store", dst.Describe())
	slog.Info("The index cache is not refreshed automatically, run invalidate-cache to pick up the changes")
	return nil
}

// RunServe exposes the finder over MCP on the configured transport.
func RunServe(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := loadSettings(params, flags, params.ValidSettings)
	if err != nil {
		return err
	}

	slog.Info("Starting dupefinder MCP server", "version", version)
	config.Log(settings)
	config.LogServe(settings, slog.Default())

	svc, cleanup, err := openFinder(ctx, params, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	mcpServer := params.CreateServer(settings, svc)

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, svc, settings)
}

// CreateMCPServer creates the MCP server with the finder tools registered
func CreateMCPServer(settings *config.Settings, svc *finder.Service) *mcp.Server {
	return mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "dupefinder",
		Version: "1.0.0",
		Finder:  svc,
	})
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// ParseLogLevel maps a log_level setting to a slog level. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log-level: %s", level)
	}
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)

	logger.InfoContext(ctx, "Config: store.driver", "value", s.Store.Driver)
	switch s.Store.Driver {
	case StoreDriverJSON:
		logger.InfoContext(ctx, "Config: store.file", "value", s.Store.File)
	default:
		logger.InfoContext(ctx, "Config: store.dsn", "value", MaskDSN(s.Store.DSN))
		logger.InfoContext(ctx, "Config: store.table", "value", s.Store.Table)
	}

	logger.InfoContext(ctx, "Config: cache.path", "value", s.Cache.Path)
	logger.InfoContext(ctx, "Config: cache.lock_timeout", "value", s.Cache.LockTimeout)
	if s.Cache.Rebuild {
		logger.InfoContext(ctx, "Config: cache.rebuild", "value", true)
	}
	logger.InfoContext(ctx, "Config: export.path", "value", s.Export.Path)
	logger.InfoContext(ctx, "Config: detect.name_distance", "value", s.Detect.NameDistance)
}

// LogServe logs the settings only relevant to the serve command
func LogServe(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}
	logger.InfoContext(ctx, "Config: search.max_results", "value", s.Search.MaxResults)

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}
}

// MaskDSN hides the password of a URL-style DSN. Other DSNs are returned as is.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("log_level", s.LogLevel),
		slog.Group("store",
			slog.String("driver", s.Store.Driver),
			slog.String("dsn", MaskDSN(s.Store.DSN)),
			slog.String("table", s.Store.Table),
			slog.String("file", s.Store.File),
		),
		slog.Group("cache",
			slog.String("path", s.Cache.Path),
			slog.Duration("lock_timeout", s.Cache.LockTimeout),
			slog.Bool("rebuild", s.Cache.Rebuild),
		),
		slog.String("export_path", s.Export.Path),
		slog.Float64("name_distance", s.Detect.NameDistance),
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
	)
}

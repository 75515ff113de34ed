package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by LoadSettings
const EnvPrefix = "DUPEFINDER"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Record store driver constants
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverJSON     = "json"
)

// Defaults
const (
	DefaultCachePath    = "index.gob"
	DefaultExportPath   = "duplicates.json"
	DefaultTable        = "businesses"
	DefaultNameDistance = 1000.0
	DefaultLockTimeout  = 5 * time.Minute
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StoreSettings configuration for the record store
type StoreSettings struct {
	Driver string `mapstructure:"driver"` // StoreDriverSQLite, StoreDriverPostgres or StoreDriverJSON
	DSN    string `mapstructure:"dsn"`    // sql drivers only
	Table  string `mapstructure:"table"`  // sql drivers only
	File   string `mapstructure:"file"`   // json driver only
}

// CacheSettings configuration for the persisted index snapshot
type CacheSettings struct {
	Path        string        `mapstructure:"path"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	Rebuild     bool          `mapstructure:"rebuild"`
}

// ExportSettings configuration for the duplicates export
type ExportSettings struct {
	Path string `mapstructure:"path"`
}

// DetectSettings configuration for duplicate detection
type DetectSettings struct {
	NameDistance float64 `mapstructure:"name_distance"` // meters
}

// SearchSettings configuration for the record search tool
type SearchSettings struct {
	MaxResults int `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	LogLevel  string         `mapstructure:"log_level"`
	Store     StoreSettings  `mapstructure:"store"`
	Cache     CacheSettings  `mapstructure:"cache"`
	Export    ExportSettings `mapstructure:"export"`
	Detect    DetectSettings `mapstructure:"detect"`
	Search    SearchSettings `mapstructure:"search"`
	Transport string         `mapstructure:"transport"`
	Host      string         `mapstructure:"host"`
	Port      int            `mapstructure:"port"`
	Auth      AuthSettings   `mapstructure:"auth"`
}

// flagBindings maps settings keys to CLI flag names
var flagBindings = map[string]string{
	"log_level":            "log-level",
	"store.driver":         "store-driver",
	"store.dsn":            "store-dsn",
	"store.table":          "store-table",
	"store.file":           "store-file",
	"cache.path":           "cache-path",
	"cache.lock_timeout":   "cache-lock-timeout",
	"cache.rebuild":        "rebuild",
	"export.path":          "export-path",
	"detect.name_distance": "name-distance",
	"search.max_results":   "search-max-results",
	"transport":            "transport",
	"host":                 "host",
	"port":                 "port",
	"auth.type":            "auth-type",
	"auth.basic.username":  "auth-basic-username",
	"auth.basic.password":  "auth-basic-password",
	"auth.api_keys":        "auth-api-keys",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used. Flags missing from
// the set are skipped, so every command may register its own subset.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", DefaultTable)
	v.SetDefault("store.file", "")
	v.SetDefault("cache.path", DefaultCachePath)
	v.SetDefault("cache.lock_timeout", DefaultLockTimeout)
	v.SetDefault("cache.rebuild", false)
	v.SetDefault("export.path", DefaultExportPath)
	v.SetDefault("detect.name_distance", DefaultNameDistance)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly so Unmarshal sees env-only values
	for key := range flagBindings {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(envName("auth.api_keys"))
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.Store.Driver = strings.ToLower(strings.TrimSpace(settings.Store.Driver))
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	// Expand home directory in paths
	settings.Store.File = expandHomeDir(settings.Store.File)
	settings.Cache.Path = expandHomeDir(settings.Cache.Path)
	settings.Export.Path = expandHomeDir(settings.Export.Path)

	return &settings, nil
}

// envName returns the environment variable name for a settings key
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting or incomplete configurations.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if err := ValidateCacheSettings(s); err != nil {
		return err
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}

	if err := validateStoreSettings(&s.Store); err != nil {
		return err
	}

	if s.Cache.LockTimeout <= 0 {
		return errors.New("cache-lock-timeout must be positive")
	}
	if s.Export.Path == "" {
		return errors.New("export-path cannot be empty")
	}
	if !(s.Detect.NameDistance > 0) || math.IsInf(s.Detect.NameDistance, 1) {
		return fmt.Errorf("name-distance must be a positive number of meters, got %v", s.Detect.NameDistance)
	}
	if s.Search.MaxResults <= 0 {
		return errors.New("search-max-results must be positive")
	}

	return nil
}

// ValidateCacheSettings checks the subset of settings needed to manage the
// index cache without touching the record store.
func ValidateCacheSettings(s *Settings) error {
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}
	if s.Cache.Path == "" {
		return errors.New("cache-path cannot be empty")
	}
	return nil
}

// validateAuthSettings rejects mutually exclusive or incomplete auth config
func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

// validateStoreSettings validates the record store configuration
func validateStoreSettings(st *StoreSettings) error {
	switch st.Driver {
	case StoreDriverSQLite, StoreDriverPostgres:
		if st.DSN == "" {
			return fmt.Errorf("store-driver '%s' requires store-dsn", st.Driver)
		}
		if st.Table == "" {
			return errors.New("store-table cannot be empty")
		}
	case StoreDriverJSON:
		if st.File == "" {
			return errors.New("store-driver 'json' requires store-file")
		}
	default:
		return errors.New("unknown store-driver: " + st.Driver)
	}
	return nil
}

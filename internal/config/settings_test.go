package config

import (
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func validSettings() *Settings {
	return &Settings{
		LogLevel:  "info",
		Store:     StoreSettings{Driver: StoreDriverSQLite, DSN: "records.db", Table: DefaultTable},
		Cache:     CacheSettings{Path: DefaultCachePath, LockTimeout: DefaultLockTimeout},
		Export:    ExportSettings{Path: DefaultExportPath},
		Detect:    DetectSettings{NameDistance: DefaultNameDistance},
		Search:    SearchSettings{MaxResults: 20},
		Transport: "stdio",
		Auth:      AuthSettings{Type: AuthTypeNone},
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", settings.Port)
	}
	if settings.Auth.Type != AuthTypeNone {
		t.Errorf("Expected default auth type '%s', got '%s'", AuthTypeNone, settings.Auth.Type)
	}
	if settings.Transport != "stdio" {
		t.Errorf("Expected default transport 'stdio', got '%s'", settings.Transport)
	}
	if settings.Store.Driver != StoreDriverSQLite {
		t.Errorf("Expected default driver '%s', got '%s'", StoreDriverSQLite, settings.Store.Driver)
	}
	if settings.Store.Table != DefaultTable {
		t.Errorf("Expected default table '%s', got '%s'", DefaultTable, settings.Store.Table)
	}
	if settings.Cache.Path != DefaultCachePath {
		t.Errorf("Expected default cache path '%s', got '%s'", DefaultCachePath, settings.Cache.Path)
	}
	if settings.Cache.LockTimeout != DefaultLockTimeout {
		t.Errorf("Expected default lock timeout %v, got %v", DefaultLockTimeout, settings.Cache.LockTimeout)
	}
	if settings.Cache.Rebuild {
		t.Error("Expected rebuild to be off by default")
	}
	if settings.Export.Path != DefaultExportPath {
		t.Errorf("Expected default export path '%s', got '%s'", DefaultExportPath, settings.Export.Path)
	}
	if settings.Detect.NameDistance != DefaultNameDistance {
		t.Errorf("Expected default name distance %v, got %v", DefaultNameDistance, settings.Detect.NameDistance)
	}
	if settings.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", settings.LogLevel)
	}
}

func TestLoadSettings_EnvVars(t *testing.T) {
	t.Setenv("DUPEFINDER_PORT", "9090")
	t.Setenv("DUPEFINDER_STORE_DRIVER", "Postgres")
	t.Setenv("DUPEFINDER_STORE_DSN", "postgres://u:p@localhost/db")
	t.Setenv("DUPEFINDER_CACHE_PATH", "/tmp/snapshot.gob")
	t.Setenv("DUPEFINDER_CACHE_LOCK_TIMEOUT", "30s")
	t.Setenv("DUPEFINDER_DETECT_NAME_DISTANCE", "1500")
	t.Setenv("DUPEFINDER_EXPORT_PATH", "/tmp/out.json")
	t.Setenv("DUPEFINDER_LOG_LEVEL", "DEBUG")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", settings.Port)
	}
	if settings.Store.Driver != StoreDriverPostgres {
		t.Errorf("Expected driver '%s', got '%s'", StoreDriverPostgres, settings.Store.Driver)
	}
	if settings.Store.DSN != "postgres://u:p@localhost/db" {
		t.Errorf("Unexpected DSN: %s", settings.Store.DSN)
	}
	if settings.Cache.Path != "/tmp/snapshot.gob" {
		t.Errorf("Unexpected cache path: %s", settings.Cache.Path)
	}
	if settings.Cache.LockTimeout != 30*time.Second {
		t.Errorf("Expected lock timeout 30s, got %v", settings.Cache.LockTimeout)
	}
	if settings.Detect.NameDistance != 1500 {
		t.Errorf("Expected name distance 1500, got %v", settings.Detect.NameDistance)
	}
	if settings.Export.Path != "/tmp/out.json" {
		t.Errorf("Unexpected export path: %s", settings.Export.Path)
	}
	if settings.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", settings.LogLevel)
	}
}

func TestLoadSettings_APIKeys_EnvVar(t *testing.T) {
	t.Setenv("DUPEFINDER_AUTH_API_KEYS", "key1, key2,,key3")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	expected := []string{"key1", "key2", "key3"}
	if len(settings.Auth.APIKeys) != len(expected) {
		t.Fatalf("Expected %d API keys, got %d (%v)", len(expected), len(settings.Auth.APIKeys), settings.Auth.APIKeys)
	}
	for i, k := range expected {
		if settings.Auth.APIKeys[i] != k {
			t.Errorf("Expected %s at %d, got '%s'", k, i, settings.Auth.APIKeys[i])
		}
	}
}

func TestLoadSettings_EnvFile(t *testing.T) {
	content := []byte("host=127.0.0.2\nport=7000")
	tmpEnv := ".env"
	if err := os.WriteFile(tmpEnv, content, 0644); err != nil {
		t.Fatalf("Failed to create .env file: %v", err)
	}
	defer func() { _ = os.Remove(tmpEnv) }()

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Host != "127.0.0.2" {
		t.Errorf("Expected host 127.0.0.2, got %s", settings.Host)
	}
	if settings.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", settings.Port)
	}
}

func TestLoadSettings_InvalidConfig(t *testing.T) {
	t.Setenv("DUPEFINDER_PORT", "not-a-number")

	_, err := LoadSettings()
	if err == nil {
		t.Fatal("Expected error for invalid port type")
	}
}

func TestLoadSettings_ExpandsHomeInPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("DUPEFINDER_CACHE_PATH", "~/dupefinder/index.gob")

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if !strings.HasPrefix(settings.Cache.Path, home) {
		t.Errorf("Expected cache path under %s, got %s", home, settings.Cache.Path)
	}
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store-driver", "", "")
	flags.String("store-dsn", "", "")
	flags.String("cache-path", "", "")
	flags.Duration("cache-lock-timeout", 0, "")
	flags.Bool("rebuild", false, "")
	flags.String("export-path", "", "")
	flags.Float64("name-distance", 0, "")
	flags.String("log-level", "", "")
	return flags
}

func TestLoadSettingsWithFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("DUPEFINDER_EXPORT_PATH", "env.json")
	t.Setenv("DUPEFINDER_DETECT_NAME_DISTANCE", "500")

	flags := newFlagSet()
	if err := flags.Parse([]string{"--export-path", "flag.json", "--name-distance", "2500"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if settings.Export.Path != "flag.json" {
		t.Errorf("Expected export path from flag, got %s", settings.Export.Path)
	}
	if settings.Detect.NameDistance != 2500 {
		t.Errorf("Expected name distance 2500 from flag, got %v", settings.Detect.NameDistance)
	}
}

func TestLoadSettingsWithFlags_EnvOverridesDefault(t *testing.T) {
	t.Setenv("DUPEFINDER_EXPORT_PATH", "env.json")

	// unset flag does not override env
	settings, err := LoadSettingsWithFlags(newFlagSet())
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Export.Path != "env.json" {
		t.Errorf("Expected export path from env, got %s", settings.Export.Path)
	}
}

func TestLoadSettingsWithFlags_RebuildFlag(t *testing.T) {
	flags := newFlagSet()
	if err := flags.Parse([]string{"--rebuild", "--cache-lock-timeout", "10s"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if !settings.Cache.Rebuild {
		t.Error("Expected rebuild to be set by flag")
	}
	if settings.Cache.LockTimeout != 10*time.Second {
		t.Errorf("Expected lock timeout 10s, got %v", settings.Cache.LockTimeout)
	}
}

func TestLoadSettingsWithFlags_PartialFlagSet(t *testing.T) {
	flags := pflag.NewFlagSet("partial", pflag.ContinueOnError)
	flags.String("transport", "", "")
	if err := flags.Parse([]string{"--transport", "sse"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	settings, err := LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Transport != "sse" {
		t.Errorf("Expected transport 'sse', got %s", settings.Transport)
	}
	if settings.Cache.Path != DefaultCachePath {
		t.Errorf("Expected default cache path, got %s", settings.Cache.Path)
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	if err := ValidateSettings(validSettings()); err != nil {
		t.Errorf("Expected valid settings, got: %v", err)
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"invalid transport", func(s *Settings) { s.Transport = "http" }, "transport must be"},
		{"unknown log level", func(s *Settings) { s.LogLevel = "verbose" }, "unknown log-level"},
		{"unknown driver", func(s *Settings) { s.Store.Driver = "mongo" }, "unknown store-driver"},
		{"sqlite without dsn", func(s *Settings) { s.Store.DSN = "" }, "requires store-dsn"},
		{"postgres without dsn", func(s *Settings) {
			s.Store.Driver = StoreDriverPostgres
			s.Store.DSN = ""
		}, "requires store-dsn"},
		{"empty table", func(s *Settings) { s.Store.Table = "" }, "store-table"},
		{"json without file", func(s *Settings) {
			s.Store.Driver = StoreDriverJSON
			s.Store.DSN = ""
		}, "requires store-file"},
		{"empty cache path", func(s *Settings) { s.Cache.Path = "" }, "cache-path"},
		{"zero lock timeout", func(s *Settings) { s.Cache.LockTimeout = 0 }, "cache-lock-timeout"},
		{"empty export path", func(s *Settings) { s.Export.Path = "" }, "export-path"},
		{"zero distance", func(s *Settings) { s.Detect.NameDistance = 0 }, "name-distance"},
		{"negative distance", func(s *Settings) { s.Detect.NameDistance = -1 }, "name-distance"},
		{"NaN distance", func(s *Settings) { s.Detect.NameDistance = math.NaN() }, "name-distance"},
		{"infinite distance", func(s *Settings) { s.Detect.NameDistance = math.Inf(1) }, "name-distance"},
		{"zero max results", func(s *Settings) { s.Search.MaxResults = 0 }, "search-max-results"},
		{"none with credentials", func(s *Settings) { s.Auth.APIKeys = []string{"k"} }, "incompatible"},
		{"basic missing password", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u"}}
		}, "requires both"},
		{"basic with api keys", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u", Password: "p"}, APIKeys: []string{"k"}}
		}, "mutually exclusive"},
		{"apikey without keys", func(s *Settings) { s.Auth = AuthSettings{Type: AuthTypeAPIKey} }, "at least one"},
		{"apikey with basic", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"k"}, Basic: BasicAuthSettings{Username: "u"}}
		}, "mutually exclusive"},
		{"unknown auth", func(s *Settings) { s.Auth = AuthSettings{Type: "oauth"} }, "unknown auth-type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_ValidVariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"json store", func(s *Settings) {
			s.Store = StoreSettings{Driver: StoreDriverJSON, File: "records.json"}
		}},
		{"postgres store", func(s *Settings) {
			s.Store = StoreSettings{Driver: StoreDriverPostgres, DSN: "postgres://localhost/db", Table: "public.businesses"}
		}},
		{"sse transport", func(s *Settings) { s.Transport = "sse" }},
		{"empty auth type", func(s *Settings) { s.Auth.Type = "" }},
		{"basic auth", func(s *Settings) {
			s.Auth = AuthSettings{Type: AuthTypeBasic, Basic: BasicAuthSettings{Username: "u", Password: "p"}}
		}},
		{"apikey auth", func(s *Settings) { s.Auth = AuthSettings{Type: AuthTypeAPIKey, APIKeys: []string{"k"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			if err := ValidateSettings(s); err != nil {
				t.Errorf("Expected valid settings, got: %v", err)
			}
		})
	}
}

func TestExpandHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/foo", home + "/foo"},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandHomeDir(tt.input); got != tt.expected {
			t.Errorf("expandHomeDir(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFilterEmptyStrings(t *testing.T) {
	got := filterEmptyStrings([]string{"a", "", "b", ""})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Unexpected result: %v", got)
	}
	if filterEmptyStrings(nil) != nil {
		t.Error("Expected nil for nil input")
	}
}

func TestEnvName(t *testing.T) {
	if got := envName("detect.name_distance"); got != "DUPEFINDER_DETECT_NAME_DISTANCE" {
		t.Errorf("Unexpected env name: %s", got)
	}
}

func TestValidateCacheSettings(t *testing.T) {
	// the record store is not needed to manage the cache
	s := &Settings{LogLevel: "info", Cache: CacheSettings{Path: "index.gob"}}
	if err := ValidateCacheSettings(s); err != nil {
		t.Errorf("Expected valid cache settings, got: %v", err)
	}

	s.Cache.Path = ""
	if err := ValidateCacheSettings(s); err == nil {
		t.Error("Expected error for empty cache path")
	}

	s = &Settings{LogLevel: "loud", Cache: CacheSettings{Path: "index.gob"}}
	if err := ValidateCacheSettings(s); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestLoadSettings_NaNDistanceIsRejected(t *testing.T) {
	t.Setenv("DUPEFINDER_STORE_DSN", "records.db")
	t.Setenv("DUPEFINDER_DETECT_NAME_DISTANCE", "NaN")

	settings, err := LoadSettingsWithFlags(nil)
	if err != nil {
		t.Fatalf("LoadSettingsWithFlags failed: %v", err)
	}
	if !math.IsNaN(settings.Detect.NameDistance) {
		t.Fatalf("Expected NaN to be loaded, got %v", settings.Detect.NameDistance)
	}
	if err := ValidateSettings(settings); err == nil || !strings.Contains(err.Error(), "name-distance") {
		t.Errorf("Expected name-distance error, got %v", err)
	}
}

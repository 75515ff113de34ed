package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestRegisterFlags_PerCommand(t *testing.T) {
	tests := []struct {
		name     string
		register func(*pflag.FlagSet)
		present  []string
		absent   []string
	}{
		{
			name:     "find-duplicates",
			register: RegisterFindFlags,
			present: []string{
				"log-level", "store-driver", "store-dsn", "store-table", "store-file",
				"cache-path", "cache-lock-timeout", "rebuild", "export-path", "name-distance",
			},
			absent: []string{"transport", "from"},
		},
		{
			name:     "invalidate-cache",
			register: RegisterInvalidateFlags,
			present:  []string{"log-level", "cache-path"},
			absent:   []string{"store-dsn", "rebuild"},
		},
		{
			name:     "import",
			register: RegisterImportFlags,
			present:  []string{"log-level", "store-driver", "store-dsn", "from"},
			absent:   []string{"cache-path", "export-path"},
		},
		{
			name:     "serve",
			register: RegisterServeFlags,
			present: []string{
				"store-driver", "cache-path", "name-distance", "search-max-results",
				"transport", "host", "port", "auth-type", "auth-basic-username",
				"auth-basic-password", "auth-api-keys",
			},
			absent: []string{"export-path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			tt.register(flags)

			for _, name := range tt.present {
				if flags.Lookup(name) == nil {
					t.Errorf("Expected flag %q to be registered", name)
				}
			}
			for _, name := range tt.absent {
				if flags.Lookup(name) != nil {
					t.Errorf("Expected flag %q not to be registered", name)
				}
			}
		})
	}
}

func TestRegisterServeFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterServeFlags(flags)

	shorthandFlags := map[string]string{
		"transport":           "t",
		"host":                "H",
		"port":                "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
		"cache-path":          "c",
		"log-level":           "l",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFindFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFindFlags(flags)

	args := []string{
		"--store-driver", "postgres",
		"--store-dsn", "postgres://localhost/db",
		"-c", "/tmp/index.gob",
		"--cache-lock-timeout", "1m",
		"--rebuild",
		"-o", "/tmp/dupes.json",
		"-d", "750",
	}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	if v, _ := flags.GetString("store-driver"); v != "postgres" {
		t.Errorf("Expected store-driver 'postgres', got %q", v)
	}
	if v, _ := flags.GetString("cache-path"); v != "/tmp/index.gob" {
		t.Errorf("Expected cache-path '/tmp/index.gob', got %q", v)
	}
	if v, _ := flags.GetDuration("cache-lock-timeout"); v != time.Minute {
		t.Errorf("Expected cache-lock-timeout 1m, got %v", v)
	}
	if v, _ := flags.GetBool("rebuild"); !v {
		t.Error("Expected rebuild to be set")
	}
	if v, _ := flags.GetString("export-path"); v != "/tmp/dupes.json" {
		t.Errorf("Expected export-path '/tmp/dupes.json', got %q", v)
	}
	if v, _ := flags.GetFloat64("name-distance"); v != 750 {
		t.Errorf("Expected name-distance 750, got %v", v)
	}
}

func TestRegisterServeFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterServeFlags(flags)

	args := []string{"-t", "sse", "-H", "127.0.0.1", "-p", "9000", "-a", "apikey", "-k", "a,b"}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	if v, _ := flags.GetString("transport"); v != "sse" {
		t.Errorf("Expected transport 'sse', got %q", v)
	}
	if v, _ := flags.GetInt("port"); v != 9000 {
		t.Errorf("Expected port 9000, got %d", v)
	}
	if v, _ := flags.GetStringSlice("auth-api-keys"); len(v) != 2 {
		t.Errorf("Expected 2 api keys, got %v", v)
	}
}

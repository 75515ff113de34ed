package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sha1n/dupefinder/internal/app"
	"github.com/sha1n/dupefinder/internal/config"
	"github.com/sha1n/dupefinder/internal/domain"
	"github.com/sha1n/dupefinder/internal/store"
	"github.com/spf13/pflag"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "dupefinder", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{
		{"--help"},
		{"find-duplicates", "--help"},
		{"invalidate-cache", "--help"},
		{"import", "--help"},
		{"serve", "--help"},
	} {
		if err := Execute("1.0.0", "abc123", "dupefinder", args); err != nil {
			t.Errorf("Expected no error for %v, got: %v", args, err)
		}
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "dupefinder", []string{"find-duplicates", "--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_UnexpectedArgument(t *testing.T) {
	err := Execute("1.0.0", "abc123", "dupefinder", []string{"find-duplicates", "extra"})
	if err == nil {
		t.Error("Expected error for positional argument")
	}
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "dupefinder", []string{"serve", "--store-driver", "json", "--store-file", "x.json", "--transport", "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Errorf("Expected error about transport, got: %v", err)
	}
}

func TestExecute_UnknownDriver(t *testing.T) {
	err := Execute("1.0.0", "abc123", "dupefinder", []string{"find-duplicates", "--store-driver", "mongo"})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected configuration error, got: %v", err)
	}
}

func TestCommands_ImportThenFind(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "records.json")
	records := []domain.Record{
		{ID: "1", Name: "Alpha", PhoneNumber: "0102", Address: domain.Address{City: "Lyon"}},
		{ID: "2", Name: "Beta", PhoneNumber: "0102", Address: domain.Address{City: "Nice"}},
	}
	if err := store.WriteJSONFile(from, records); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}

	var stdout, logs bytes.Buffer
	params := app.DefaultRunParams()
	params.Stdout = &stdout
	params.LogOutput = &logs

	storeArgs := []string{"--store-driver", "sqlite", "--store-dsn", filepath.Join(dir, "records.db")}
	run := func(args ...string) error {
		return newRootCommand("test", "dupefinder", params, args).Execute()
	}

	if err := run(append([]string{"import", "--from", from}, storeArgs...)...); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	findArgs := append([]string{
		"find-duplicates",
		"--cache-path", filepath.Join(dir, "index.gob"),
		"--export-path", filepath.Join(dir, "duplicates.json"),
	}, storeArgs...)
	if err := run(findArgs...); err != nil {
		t.Fatalf("find-duplicates failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "same phone number") {
		t.Errorf("Expected phone duplicate in report:\n%s", stdout.String())
	}

	if err := run("invalidate-cache", "--cache-path", filepath.Join(dir, "index.gob")); err != nil {
		t.Fatalf("invalidate-cache failed: %v", err)
	}
	if !strings.Contains(logs.String(), "Index cache invalidated") {
		t.Errorf("Expected invalidation to be logged:\n%s", logs.String())
	}
}

func TestCommands_PropagateRunErrors(t *testing.T) {
	params := app.RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return nil, errors.New("settings error")
		},
	}

	for _, cmd := range []string{"find-duplicates", "invalidate-cache", "import", "serve"} {
		err := newRootCommand("test", "dupefinder", params, []string{cmd}).Execute()
		if err == nil || !strings.Contains(err.Error(), "failed to load settings") {
			t.Errorf("%s: expected settings error, got %v", cmd, err)
		}
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"dupefinder", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"dupefinder", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}

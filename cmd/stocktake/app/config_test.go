package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"

	"github.com/agentstation/stocktake/pkg/decide"
)

// isolate resets viper and points HOME at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LOG_LEVEL", "")
	return home
}

// TestLoadConfig verifies the defaults.
func TestLoadConfig(t *testing.T) {
	home := isolate(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LedgerDriver != "sqlite" {
		t.Errorf("LedgerDriver = %q, want sqlite", config.LedgerDriver)
	}
	if want := filepath.Join(home, ".stocktake", "ledger.db"); config.LedgerDSN != want {
		t.Errorf("LedgerDSN = %q, want %q", config.LedgerDSN, want)
	}
	if want := filepath.Join(home, ".stocktake", "inventories"); config.RootDir != want {
		t.Errorf("RootDir = %q, want %q", config.RootDir, want)
	}
	if want := []string{"06-30", "12-31"}; !reflect.DeepEqual(config.ReferenceDates, want) {
		t.Errorf("ReferenceDates = %v, want %v", config.ReferenceDates, want)
	}
	if config.LogFormat != "auto" {
		t.Errorf("LogFormat = %q, want auto", config.LogFormat)
	}
	if len(config.Decisions) != 0 {
		t.Errorf("Decisions = %v, want none", config.Decisions)
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	t.Setenv("STOCKTAKE_ROOT_DIR", root)
	t.Setenv("STOCKTAKE_LEDGER_DRIVER", "postgres")
	t.Setenv("STOCKTAKE_DECISIONS_OVERWRITE", "yes")
	t.Setenv("STOCKTAKE_DECISIONS_UNKNOWN_ITEM", "No")
	t.Setenv("STOCKTAKE_DECISIONS_RETRY", "ask")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.RootDir != root {
		t.Errorf("RootDir = %q, want %q", config.RootDir, root)
	}
	if config.LedgerDriver != "postgres" {
		t.Errorf("LedgerDriver = %q, want postgres", config.LedgerDriver)
	}
	want := map[decide.Kind]string{
		decide.KindOverwrite:   DecisionYes,
		decide.KindUnknownItem: DecisionNo,
	}
	if !reflect.DeepEqual(config.Decisions, want) {
		t.Errorf("Decisions = %v, want %v", config.Decisions, want)
	}
	if config.EnvLogLevel != "debug" {
		t.Errorf("EnvLogLevel = %q, want debug", config.EnvLogLevel)
	}
}

// TestConfig_InvalidDecision verifies that unknown answers are rejected.
func TestConfig_InvalidDecision(t *testing.T) {
	isolate(t)
	t.Setenv("STOCKTAKE_DECISIONS_RENAME_FALLBACK", "maybe")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() accepted an invalid decision")
	}
}

// TestConfig_File verifies reading an explicit config file.
func TestConfig_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "stocktake.yaml")
	content := `root_dir: /srv/inventories
reference_dates:
  - "03-31"
  - "09-30"
ledger:
  driver: memory
report:
  language: de
  currency: EUR
archive:
  bucket: inventories
  prefix: site-a
  path_style: true
decisions:
  orphan_family: "yes"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOCKTAKE_CONFIG", path)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.RootDir != "/srv/inventories" {
		t.Errorf("RootDir = %q", config.RootDir)
	}
	if want := []string{"03-31", "09-30"}; !reflect.DeepEqual(config.ReferenceDates, want) {
		t.Errorf("ReferenceDates = %v, want %v", config.ReferenceDates, want)
	}
	if config.LedgerDriver != "memory" {
		t.Errorf("LedgerDriver = %q, want memory", config.LedgerDriver)
	}
	if config.ReportLanguage != "de" || config.ReportCurrency != "EUR" {
		t.Errorf("report = %q %q", config.ReportLanguage, config.ReportCurrency)
	}
	if config.Archive.Bucket != "inventories" || config.Archive.Prefix != "site-a" || !config.Archive.PathStyle {
		t.Errorf("Archive = %+v", config.Archive)
	}
	if config.Decisions[decide.KindOrphanFamily] != DecisionYes {
		t.Errorf("Decisions = %v", config.Decisions)
	}
}

// TestConfig_MissingFile verifies that a named but missing file is an error.
func TestConfig_MissingFile(t *testing.T) {
	isolate(t)
	t.Setenv("STOCKTAKE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() accepted a missing config file")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := map[string]string{
		"~":          home,
		"~/a/b":      filepath.Join(home, "a", "b"),
		"/abs":       "/abs",
		"rel/path":   "rel/path",
		"~other/dir": "~other/dir",
	}
	for in, want := range tests {
		if got := expandPath(in); got != want {
			t.Errorf("expandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int      `env:"LCNOTES_TEST_PORT" envDefault:"123"`
	To   []string `env:"LCNOTES_TEST_TO" envSeparator:","`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvSplitsLists(t *testing.T) {
	t.Setenv("LCNOTES_TEST_TO", "a@example.com,b@example.com")
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if len(cfg.To) != 2 || cfg.To[1] != "b@example.com" {
		t.Fatalf("to = %v, want two recipients", cfg.To)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("LCNOTES_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnvMissingFileIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("load missing dotenv: %v", err)
	}
	if err := LoadDotEnv("  "); err != nil {
		t.Fatalf("load blank dotenv path: %v", err)
	}
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "LCNOTES_TEST_DOTENV_NEW=from-file\nLCNOTES_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv("LCNOTES_TEST_DOTENV_SET", "from-env")
	t.Setenv("LCNOTES_TEST_DOTENV_NEW", "")
	os.Unsetenv("LCNOTES_TEST_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("LCNOTES_TEST_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("new var = %q, want %q", got, "from-file")
	}
	if got := os.Getenv("LCNOTES_TEST_DOTENV_SET"); got != "from-env" {
		t.Fatalf("set var = %q, want %q", got, "from-env")
	}
}

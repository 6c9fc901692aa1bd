package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabnav/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Source != types.SourceBridge || cfg.Port != DefaultPort || cfg.CDPURL != "http://127.0.0.1:9222" {
		t.Errorf("Default() = %+v", cfg)
	}
	if cfg.StaleDays != DefaultStaleDays {
		t.Errorf("StaleDays = %d", cfg.StaleDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
source: cdp
cdp_url: http://127.0.0.1:9333
db: /tmp/tabnav-test.db
no_journal: true
stale_days: 0
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Source != types.SourceCDP || cfg.CDPURL != "http://127.0.0.1:9333" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("unset port should keep default, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/tabnav-test.db" || !cfg.NoJournal {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.StaleDays != 0 {
		t.Errorf("stale_days: 0 should disable the check, got %d", cfg.StaleDays)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Source != types.SourceBridge {
		t.Errorf("cfg.Source = %q", cfg.Source)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "port: [not a number\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "source: cdp\nport: 20000\nprofile: work\n")

	t.Chdir(dir) // no .env here
	t.Setenv("TABNAV_CONFIG", path)
	t.Setenv("TABNAV_SOURCE", "firefox")
	t.Setenv("TABNAV_PORT", "not-a-port")
	t.Setenv("TABNAV_LOG_DIR", "/tmp/tabnav-logs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != types.SourceFirefox {
		t.Errorf("Source = %q, want env override", cfg.Source)
	}
	if cfg.Port != 20000 {
		t.Errorf("Port = %d, invalid env must keep file value", cfg.Port)
	}
	if cfg.Profile != "work" || cfg.LogDir != "/tmp/tabnav-logs" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "TABNAV_CDP_URL=http://10.0.0.2:9222\n")

	t.Chdir(dir)
	t.Setenv("TABNAV_CONFIG", filepath.Join(dir, "absent.yaml"))
	t.Setenv("TABNAV_CDP_URL", "")
	os.Unsetenv("TABNAV_CDP_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CDPURL != "http://10.0.0.2:9222" {
		t.Errorf("CDPURL = %q, want value from .env", cfg.CDPURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Source = "safari"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("Validate(safari) = %v", err)
	}

	cfg = Default()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected port range error")
	}

	cfg = Default()
	cfg.StaleDays = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected stale days error")
	}
}

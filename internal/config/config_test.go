package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ultidisk/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ULTIDISK_PASSWORD", "")
	t.Setenv("ULTIDISK_BASE_URL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "ultidisk")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.CatalogPath() != filepath.Join(wantData, "catalog.db") {
		t.Fatalf("unexpected catalog path %q", cfg.CatalogPath())
	}
	if cfg.Device.BaseURL != "http://c64u" {
		t.Fatalf("unexpected base url %q", cfg.Device.BaseURL)
	}
	if cfg.FTP.Host != "c64u" {
		t.Fatalf("expected ftp host derived from base url, got %q", cfg.FTP.Host)
	}
	if cfg.Scan.Workers != 3 || cfg.Scan.ProgressIntervalMs != 120 {
		t.Fatalf("unexpected scan defaults %+v", cfg.Scan)
	}
}

func TestLoadFromFileAppliesOverrides(t *testing.T) {
	t.Setenv("ULTIDISK_PASSWORD", "")
	t.Setenv("ULTIDISK_BASE_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Device.BaseURL = "192.168.1.64/"
	cfg.Device.Password = "secret"
	cfg.Scan.Workers = 5
	cfg.Logging.Format = "JSON"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q, got %q exists=%v", path, resolved, exists)
	}
	if loaded.Device.BaseURL != "http://192.168.1.64" {
		t.Fatalf("expected scheme added and slash trimmed, got %q", loaded.Device.BaseURL)
	}
	if loaded.FTP.Host != "192.168.1.64" {
		t.Fatalf("unexpected ftp host %q", loaded.FTP.Host)
	}
	if loaded.FTP.Password != "secret" {
		t.Fatalf("expected ftp password to fall back to device password, got %q", loaded.FTP.Password)
	}
	if loaded.Scan.Workers != 5 {
		t.Fatalf("unexpected workers %d", loaded.Scan.Workers)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected lower-cased log format, got %q", loaded.Logging.Format)
	}
}

func TestPasswordFromEnvironment(t *testing.T) {
	t.Setenv("ULTIDISK_PASSWORD", "from-env")
	t.Setenv("ULTIDISK_BASE_URL", "http://10.0.0.5")
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Device.Password != "from-env" {
		t.Fatalf("expected env password, got %q", cfg.Device.Password)
	}
	if cfg.Device.BaseURL != "http://10.0.0.5" {
		t.Fatalf("expected env base url, got %q", cfg.Device.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scheme", func(c *config.Config) { c.Device.BaseURL = "ftp://device" }, "http or https"},
		{"workers", func(c *config.Config) { c.Scan.Workers = 64 }, "scan.workers"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("ULTIDISK_PASSWORD", "")
	t.Setenv("ULTIDISK_BASE_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load cleanly, exists=%v err=%v", exists, err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Download.MaxConcurrentSegments != 4 {
		t.Fatalf("unexpected concurrency %d", cfg.Download.MaxConcurrentSegments)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[server]
addr = "0.0.0.0:9999"

[download]
destination = "/srv/media"
max_concurrent_segments = 12
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, resolved, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path %q", resolved)
	}
	if cfg.Server.Addr != "0.0.0.0:9999" {
		t.Fatalf("addr not loaded: %q", cfg.Server.Addr)
	}
	if cfg.Download.Destination != "/srv/media" || cfg.Download.MaxConcurrentSegments != 12 {
		t.Fatalf("download section not loaded: %+v", cfg.Download)
	}
	// Untouched values keep their defaults.
	if cfg.Download.OutputFormat != "mp4" {
		t.Fatalf("default lost: %q", cfg.Download.OutputFormat)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\naddr = \"1.2.3.4:80\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VODFETCH_ADDR", "localhost:7070")
	t.Setenv("VODFETCH_MAX_WORKERS", "5")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "localhost:7070" {
		t.Fatalf("env override lost: %q", cfg.Server.Addr)
	}
	if cfg.Download.MaxWorkers != 5 {
		t.Fatalf("env int override lost: %d", cfg.Download.MaxWorkers)
	}
}

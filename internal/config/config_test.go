package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultHTTPAddr, cfg.Server.Addr)
	}
	if cfg.Vault.Backend != "fs" {
		t.Fatalf("expected fs vault backend, got %q", cfg.Vault.Backend)
	}
	if cfg.Ingest.AudioInlineMax != DefaultAudioInlineMax {
		t.Fatalf("expected default audio threshold, got %d", cfg.Ingest.AudioInlineMax)
	}
	if cfg.Sweeper.Schedule != DefaultSweepSchedule {
		t.Fatalf("expected default sweep schedule, got %q", cfg.Sweeper.Schedule)
	}
}

func TestLoadOverridesAndDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[vault]
backend = "s3"

[vault.s3]
bucket = "assets"
endpoint = "http://127.0.0.1:9000"

[ingest]
audio_inline_max = 1024

[sweeper]
probe_pause_ms = 10
probe_timeout_s = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr override lost: %q", cfg.Server.Addr)
	}
	if cfg.Vault.Backend != "s3" || cfg.Vault.S3.Bucket != "assets" {
		t.Fatalf("vault config not parsed: %+v", cfg.Vault)
	}
	if cfg.Ingest.AudioInlineMax != 1024 {
		t.Fatalf("audio threshold override lost: %d", cfg.Ingest.AudioInlineMax)
	}
	if got := cfg.Sweeper.ProbePause(); got != 10*time.Millisecond {
		t.Fatalf("ProbePause = %v", got)
	}
	if got := cfg.Sweeper.ProbeTimeout(); got != 2*time.Second {
		t.Fatalf("ProbeTimeout = %v", got)
	}
	if cfg.Postgres.Host != DefaultPGHost {
		t.Fatalf("untouched sections must still default: %q", cfg.Postgres.Host)
	}
}

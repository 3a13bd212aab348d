// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "mediavault"
	DefaultPGSSLMode      = "disable"
	DefaultVaultBackend   = "fs"
	DefaultVaultRoot      = "data/vault"
	DefaultMirrorPath     = "data/index-mirror.json"
	DefaultMaxUploadBytes = 200 << 20 // 200 MiB
	DefaultAudioInlineMax = 50 << 10  // 50 KiB
	DefaultSweepSchedule  = "@every 1h"
	DefaultSweepPauseMS   = 250
	DefaultProbeTimeoutS  = 5
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Vault    VaultConfig    `toml:"vault"`
	Ingest   IngestConfig   `toml:"ingest"`
	Sweeper  SweeperConfig  `toml:"sweeper"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds connection parameters for the metadata index.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// VaultConfig selects and parameterizes the content vault backend.
// Backend is "fs" (default) or "s3".
type VaultConfig struct {
	Backend string `toml:"backend"`
	// Root is the payload directory for the fs backend.
	Root string `toml:"root"`
	// MirrorPath is the secondary reduced-fidelity index mirror location.
	MirrorPath string `toml:"mirror_path"`
	S3         S3Config `toml:"s3"`
}

// S3Config holds S3-compatible object store parameters (MinIO friendly).
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	KeyPrefix       string `toml:"key_prefix"`
}

// IngestConfig bounds the ingestion pipeline.
type IngestConfig struct {
	// MaxUploadBytes rejects oversized files before transformation.
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
	// AudioInlineMax is the threshold above which audio is promoted to
	// heavy-payload storage in the vault.
	AudioInlineMax int64 `toml:"audio_inline_max"`
	// FFmpegPath / FFprobePath override $PATH lookup for the video tools.
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
}

// SweeperConfig drives the background cleanup of unreachable remote assets.
type SweeperConfig struct {
	// Schedule is a cron expression or descriptor (e.g. "@every 1h").
	Schedule string `toml:"schedule"`
	// ProbePauseMS is the pause between reachability probes.
	ProbePauseMS int `toml:"probe_pause_ms"`
	// ProbeTimeoutS bounds each individual probe.
	ProbeTimeoutS int `toml:"probe_timeout_s"`
}

// ProbePause returns the configured inter-probe pause as a duration.
func (c SweeperConfig) ProbePause() time.Duration {
	return time.Duration(c.ProbePauseMS) * time.Millisecond
}

// ProbeTimeout returns the configured per-probe timeout as a duration.
func (c SweeperConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutS) * time.Second
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields. A missing file yields the pure defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultHTTPAddr
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPGHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPGPort
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = DefaultPGUser
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultPGDatabase
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = DefaultPGSSLMode
	}
	if cfg.Vault.Backend == "" {
		cfg.Vault.Backend = DefaultVaultBackend
	}
	if cfg.Vault.Root == "" {
		cfg.Vault.Root = DefaultVaultRoot
	}
	if cfg.Vault.MirrorPath == "" {
		cfg.Vault.MirrorPath = DefaultMirrorPath
	}
	if cfg.Ingest.MaxUploadBytes <= 0 {
		cfg.Ingest.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Ingest.AudioInlineMax <= 0 {
		cfg.Ingest.AudioInlineMax = DefaultAudioInlineMax
	}
	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = DefaultSweepSchedule
	}
	if cfg.Sweeper.ProbePauseMS <= 0 {
		cfg.Sweeper.ProbePauseMS = DefaultSweepPauseMS
	}
	if cfg.Sweeper.ProbeTimeoutS <= 0 {
		cfg.Sweeper.ProbeTimeoutS = DefaultProbeTimeoutS
	}
}

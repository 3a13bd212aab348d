package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/craftpage/mediavault/cmd/mediavault/modules"
	"github.com/craftpage/mediavault/db"
	"github.com/craftpage/mediavault/internal/config"
	internaldb "github.com/craftpage/mediavault/internal/db"
	"github.com/craftpage/mediavault/internal/logger"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/vault"
	"github.com/craftpage/mediavault/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrate(os.Args[2:])
			return
		case "migrate-legacy":
			runMigrateLegacy(os.Args[2:])
			return
		case "version":
			fmt.Println(version.GetInfo())
			return
		}
	}

	fx.New(
		modules.InfraModule,
		modules.DomainModule,
		modules.ServerModule,
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func loadConfig() config.Config {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg
}

func runMigrate(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mediavault migrate <up|down|version|force N>")
		os.Exit(1)
	}
	cfg := loadConfig()
	if err := internaldb.RunMigrate(logger.L, cfg.Postgres, db.MigrationsFS, args[0], args[1:]); err != nil {
		logger.L.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runMigrateLegacy imports the deprecated flat gallery store into the
// tiered layout.
func runMigrateLegacy(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mediavault migrate-legacy <path-to-legacy-store.json>")
		os.Exit(1)
	}
	cfg := loadConfig()
	ctx := context.Background()

	pool, err := internaldb.Open(ctx, cfg.Postgres)
	if err != nil {
		logger.L.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var provider vault.Provider
	switch cfg.Vault.Backend {
	case "s3":
		provider, err = vault.NewS3Provider(ctx, logger.L, cfg.Vault.S3)
	default:
		provider, err = vault.NewFSProvider(logger.L, cfg.Vault.Root)
	}
	if err != nil {
		logger.L.Error("vault init failed", slog.Any("error", err))
		os.Exit(1)
	}

	var mirror *store.Mirror
	if cfg.Vault.MirrorPath != "" {
		mirror = store.NewMirror(cfg.Vault.MirrorPath)
	}
	tiered := store.NewTieredStore(logger.L, store.NewPostgresIndex(pool), provider, mirror, cfg.Ingest.AudioInlineMax)

	migrated, err := tiered.MigrateLegacy(ctx, args[0])
	if err != nil {
		logger.L.Error("legacy migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.L.Info("legacy migration complete", slog.Int("migrated", migrated))
}

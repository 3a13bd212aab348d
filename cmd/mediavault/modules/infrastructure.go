package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/craftpage/mediavault/internal/config"
	"github.com/craftpage/mediavault/internal/db"
	"github.com/craftpage/mediavault/internal/logger"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/vault"
)

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideDBConn,
		provideVaultProvider,
		provideMirror,
	),
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideVaultProvider(log *slog.Logger, cfg config.Config) (vault.Provider, error) {
	switch cfg.Vault.Backend {
	case "s3":
		return vault.NewS3Provider(context.Background(), log, cfg.Vault.S3)
	case "fs", "":
		return vault.NewFSProvider(log, cfg.Vault.Root)
	default:
		return nil, fmt.Errorf("unknown vault backend %q (use: fs, s3)", cfg.Vault.Backend)
	}
}

func provideMirror(cfg config.Config) *store.Mirror {
	if cfg.Vault.MirrorPath == "" {
		return nil
	}
	return store.NewMirror(cfg.Vault.MirrorPath)
}

package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/craftpage/mediavault/internal/config"
	"github.com/craftpage/mediavault/internal/ingest"
	"github.com/craftpage/mediavault/internal/media"
	"github.com/craftpage/mediavault/internal/reconcile"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/sweeper"
	"github.com/craftpage/mediavault/internal/vault"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		fx.Annotate(store.NewPostgresIndex, fx.As(new(store.Index))),
		provideTieredStore,
		media.NewImageOptimizer,
		media.NewAudioRepairer,
		provideVideoProcessor,
		ingest.NewPipeline,
		reconcile.NewReconciler,
		provideSweeper,
	),
)

func provideTieredStore(log *slog.Logger, index store.Index, provider vault.Provider, mirror *store.Mirror, cfg config.Config) *store.TieredStore {
	return store.NewTieredStore(log, index, provider, mirror, cfg.Ingest.AudioInlineMax)
}

func provideVideoProcessor(log *slog.Logger, cfg config.Config) *media.VideoProcessor {
	return media.NewVideoProcessor(log, cfg.Ingest.FFmpegPath, cfg.Ingest.FFprobePath)
}

func provideSweeper(log *slog.Logger, s *store.TieredStore, cfg config.Config) *sweeper.Sweeper {
	return sweeper.NewSweeper(log, s, cfg.Sweeper)
}

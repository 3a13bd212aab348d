package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/craftpage/mediavault/internal/config"
	"github.com/craftpage/mediavault/internal/handlers"
	"github.com/craftpage/mediavault/internal/ingest"
	"github.com/craftpage/mediavault/internal/reconcile"
	"github.com/craftpage/mediavault/internal/server"
	"github.com/craftpage/mediavault/internal/store"
	"github.com/craftpage/mediavault/internal/sweeper"
	"github.com/craftpage/mediavault/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(provideAssetsHandler),
		provideServer,
	),
	fx.Invoke(
		startSweeper,
		startServer,
	),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideAssetsHandler(log *slog.Logger, pipeline *ingest.Pipeline, s *store.TieredStore, reconciler *reconcile.Reconciler, sw *sweeper.Sweeper, cfg config.Config) *handlers.AssetsHandler {
	return handlers.NewAssetsHandler(log, pipeline, s, reconciler, sw, cfg.Ingest.MaxUploadBytes)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	// The request body cap sits above the per-file limit so multipart
	// framing never trips it first.
	bodyCap := params.Config.Ingest.MaxUploadBytes * 2
	return server.NewServer(params.Logger, params.Config.Server.Addr, bodyCap, params.ServerHandlers...)
}

func startSweeper(lc fx.Lifecycle, sw *sweeper.Sweeper, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sw.Start(cfg.Sweeper.Schedule)
		},
		OnStop: func(ctx context.Context) error {
			sw.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting MediaVault %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

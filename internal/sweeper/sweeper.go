// Package sweeper removes assets whose externally-hosted content has gone
// away. It runs in the background and never blocks ingestion or retrieval.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftpage/mediavault/internal/config"
	"github.com/craftpage/mediavault/internal/store"
)

// minAssetAge guards freshly ingested assets from being probed before the
// remote store has finished propagating them.
const minAssetAge = 10 * time.Minute

// Report summarizes one sweep.
type Report struct {
	Scanned   int       `json:"scanned"`
	Removed   int       `json:"removed"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

// Sweeper probes every asset with a remote origin and deletes the ones
// whose remote resource definitively no longer exists. Only a 404 or 410
// counts as gone; transport errors and server errors keep the asset, so a
// flaky remote never causes data loss.
type Sweeper struct {
	store  *store.TieredStore
	client *http.Client
	logger *slog.Logger
	pause  time.Duration
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewSweeper(log *slog.Logger, s *store.TieredStore, cfg config.SweeperConfig) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:  s,
		client: &http.Client{Timeout: cfg.ProbeTimeout()},
		logger: log.With(slog.String("service", "sweeper")),
		pause:  cfg.ProbePause(),
	}
}

// Start schedules periodic sweeps with the given cron pattern.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			s.logger.Error("scheduled sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop halts the periodic schedule. An in-flight sweep finishes on its own.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Run performs one sweep. Concurrent calls are collapsed: if a sweep is
// already in flight, Run returns an empty report immediately.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("sweep already in progress, skipping")
		return Report{}, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report := Report{StartedAt: time.Now().UTC()}
	assets, err := s.store.ListAll(ctx, "")
	if err != nil {
		return report, fmt.Errorf("list assets: %w", err)
	}

	for _, asset := range assets {
		if asset.RemoteOrigin == "" {
			continue
		}
		if time.Since(asset.IngestedAt) < minAssetAge {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		report.Scanned++
		if s.reachable(ctx, asset.RemoteOrigin) {
			time.Sleep(s.pause)
			continue
		}

		s.logger.Info("removing asset with unreachable remote",
			slog.String("id", asset.ID),
			slog.String("origin", asset.RemoteOrigin))
		if err := s.store.Delete(ctx, asset.ID); err != nil {
			s.logger.Warn("sweep delete failed",
				slog.String("id", asset.ID), slog.Any("error", err))
		} else {
			report.Removed++
		}
		time.Sleep(s.pause)
	}

	report.ElapsedMS = time.Since(report.StartedAt).Milliseconds()
	s.logger.Info("sweep finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("removed", report.Removed))
	return report, nil
}

// reachable issues a HEAD probe. Anything short of a definitive "resource
// gone" answer counts as reachable.
func (s *Sweeper) reachable(ctx context.Context, origin string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, origin, nil)
	if err != nil {
		s.logger.Warn("unprobeable remote origin", slog.String("origin", origin))
		return true
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusGone
}

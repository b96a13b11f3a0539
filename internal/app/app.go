// Package app wires configuration into the campaign engine, its subscribers
// and the HTTP surface, and owns the process lifecycle.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wyckoff/internal/config"
	"wyckoff/internal/engine"
	"wyckoff/internal/eventbus"
	"wyckoff/internal/logger"
	"wyckoff/internal/regime"
	"wyckoff/internal/scheduler"
	"wyckoff/internal/store/audit"
	"wyckoff/internal/store/sqlite"
	httpapi "wyckoff/internal/transport/http"
	"wyckoff/internal/validation"
	"wyckoff/internal/validation/cache"
)

type App struct {
	cfg       *config.Config
	bus       *eventbus.Bus
	analyzer  *regime.Analyzer
	registry  *regime.CalibrationRegistry
	validator *validation.SequenceValidator
	cache     *cache.Cache
	engine    *engine.Manager
	snapshots *sqlite.Store
	rejects   *audit.Log
	http      *httpapi.Server
}

// New builds the application from config without starting anything.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Engine exposes the campaign manager for embedding and replay harnesses.
func (a *App) Engine() *engine.Manager {
	if a == nil {
		return nil
	}
	return a.engine
}

// Run serves HTTP and the background sweeps until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sweep := scheduler.NewIntervalScheduler(ctx, "campaign-expiry", a.cfg.Engine.SweepInterval)
		sweep.Start(func() {
			if n := a.engine.ExpireStale(); n > 0 {
				logger.Infof("expiry sweep: %d campaign(s) expired", n)
			}
		})
		return nil
	})

	group.Go(func() error {
		sweep := scheduler.NewIntervalScheduler(ctx, "cache-sweep", a.cfg.Cache.SweepInterval)
		sweep.Start(func() {
			if n := a.cache.Sweep(); n > 0 {
				logger.Debugf("cache sweep: %d expired entries dropped", n)
			}
		})
		return nil
	})

	err := group.Wait()
	a.close()
	return err
}

func (a *App) close() {
	a.bus.Close()
	if a.snapshots != nil {
		if cerr := a.snapshots.Close(); cerr != nil {
			logger.Warnf("snapshot store close: %v", cerr)
		}
	}
	if a.rejects != nil {
		if cerr := a.rejects.Close(); cerr != nil {
			logger.Warnf("rejection log close: %v", cerr)
		}
	}
}

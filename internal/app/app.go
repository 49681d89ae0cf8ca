package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"failwatch/internal/alerts"
	"failwatch/internal/config"
	"failwatch/internal/db"
	"failwatch/internal/notifier"
	"failwatch/internal/retention"
	"failwatch/internal/tail"
	"failwatch/internal/watcher"
	"failwatch/internal/web"
)

const shutdownGrace = 5 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	sqldb    *sql.DB
	repo     *db.Repository
	tailer   *tail.Tailer
	dispatch *alerts.Dispatcher
	watcher  *watcher.Watcher

	retention *retention.Service
	httpSrv   *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: logger}

	if cfg.DBPath != "" {
		sqldb, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(sqldb); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		a.sqldb = sqldb
		a.repo = db.NewRepository(sqldb)
		a.retention = retention.NewService(a.repo, cfg.RetentionDays, logger.With("module", "retention"))
	}

	hook := notifier.NewWebhook(cfg.WebhookURL, cfg.SendTimeout)
	a.dispatch = alerts.NewDispatcher(hook, a.repo, logger.With("module", "alerts"),
		cfg.Cooldown, cfg.Maintenance, cfg.DispatchQueue, cfg.SendTimeout)
	a.tailer = tail.New(cfg.LogPath, cfg.PollInterval, cfg.MissingGrace, logger.With("module", "tail"))
	a.watcher = watcher.New(cfg, a.tailer, a.dispatch, logger.With("module", "watcher"))

	if cfg.Addr != "" {
		srv := web.NewServer(a.watcher, a.repo, logger.With("module", "web"))
		a.httpSrv = &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}
	}
	return a, nil
}

// Run blocks until ctx is canceled (clean stop, returns nil) or the log
// source fails past recovery (returns the cause).
func (a *App) Run(ctx context.Context) error {
	a.dispatch.Start()

	if a.httpSrv != nil {
		go func() {
			a.log.Info("status server listening", "addr", a.cfg.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("status server failed", "err", err)
			}
		}()
	}
	if a.retention != nil {
		go a.retentionLoop(ctx)
	}

	err := a.watcher.Run(ctx)

	if a.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		_ = a.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	a.dispatch.Stop(shutdownGrace)
	_ = a.tailer.Close()
	if a.sqldb != nil {
		_ = a.sqldb.Close()
	}
	return err
}

func (a *App) retentionLoop(ctx context.Context) {
	a.retention.Run(ctx)
	t := time.NewTicker(6 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.retention.Run(ctx)
		}
	}
}

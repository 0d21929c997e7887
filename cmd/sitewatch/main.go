package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/detect"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/recovery"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/postgres"
	"github.com/hamed0406/sitewatch/internal/repo/sqlite"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogStderr)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("maxprocs_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sitewatch_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	list, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		return err
	}
	sites := config.NewSiteSet(list)
	logger.Info("sites_loaded", zap.String("file", cfg.SitesFile), zap.Int("count", len(list)))

	store, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	slack := notify.NewSlack(cfg.SlackWebhook)
	alerts := notify.Join(slack, notify.Log{L: logger})

	registry := recovery.NewRegistry()
	prompts := recovery.NewPromptQueue()
	proto := recovery.NewProtocol(
		registry,
		recovery.NotifyAssistant{Notifier: notify.Join(slack, notify.Log{L: logger.Named("login")})},
		prompts,
		logger.Named("recovery"),
	)
	defer proto.Close()

	prober := probe.NewHTTPProber()
	defer prober.CloseShared()

	det := detect.New(detect.Config{
		Logger:   logger.Named("detect"),
		Store:    store,
		Synced:   store,
		Prober:   prober,
		Notices:  notify.Log{L: logger.Named("notice")},
		Recovery: proto,
		Timeout:  cfg.ProbeTimeout,
	})

	refresher := scheduler.NewAutoRefresher(logger.Named("autorefresh"),
		func(ctx context.Context, site domain.Site) error {
			_, err := det.DetectSingle(ctx, site, detect.SingleOptions{Quick: true})
			return err
		},
		scheduler.AutoRefreshConfig{},
	)
	defer refresher.Close()
	refresher.Reconcile(sites.All(), cfg.AutoRefresh)

	// Background loops must stop before the deferred closes above run.
	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		reloadOnHUP(gctx, cfg, sites, refresher, logger)
		return nil
	})

	alerter := scheduler.NewAlerter(logger.Named("alerter"), store, alerts, scheduler.AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        cfg.AlertCooldown,
	})
	g.Go(func() error {
		if err := alerter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	batches := scheduler.NewBatchRunner(logger.Named("batch"), sites, det, cfg.BatchInterval, cfg.ProbeTimeout, cfg.MaxConcurrent)
	g.Go(func() error {
		batches.Run(gctx)
		return nil
	})

	api := &httpapi.Server{
		Logger:      logger.Named("api"),
		Sites:       sites,
		Results:     store,
		Detector:    det,
		Registry:    registry,
		Prompts:     prompts,
		Timers:      refresher,
		Concurrency: cfg.MaxConcurrent,
		Timeout:     cfg.ProbeTimeout,
	}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:        apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			PublicRPM:   cfg.PublicRPM,
			PublicBurst: cfg.PublicBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-gctx.Done():
	}

	logger.Info("shutdown_start")
	stopLoops()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("shutdown_done")
	return runErr
}

// openStore picks the result store from DATABASE_URL.
func openStore(ctx context.Context, dsn string, logger *zap.Logger) (repo.Store, error) {
	switch {
	case dsn == "":
		logger.Info("store_selected", zap.String("kind", "memory"))
		return memory.New(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		logger.Info("store_selected", zap.String("kind", "postgres"))
		return postgres.New(ctx, dsn, logger.Named("postgres"))
	default:
		logger.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", dsn))
		return sqlite.New(ctx, dsn, logger.Named("sqlite"))
	}
}

// reloadOnHUP re-reads the sites file on SIGHUP and reconciles the timers.
func reloadOnHUP(ctx context.Context, cfg config.Config, sites *config.SiteSet, refresher *scheduler.AutoRefresher, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			list, err := config.LoadSites(cfg.SitesFile)
			if err == nil {
				err = sites.Replace(list)
			}
			if err != nil {
				logger.Warn("sites_reload_error", zap.Error(err))
				continue
			}
			refresher.Reconcile(sites.All(), cfg.AutoRefresh)
			logger.Info("sites_reloaded", zap.Int("count", len(list)))
		}
	}
}

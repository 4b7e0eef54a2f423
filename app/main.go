package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-hoard/app/api"
	"github.com/lysyi3m/rss-hoard/app/cfg"
	"github.com/lysyi3m/rss-hoard/app/config"
	"github.com/lysyi3m/rss-hoard/app/database"
	"github.com/lysyi3m/rss-hoard/app/feed"
	"github.com/lysyi3m/rss-hoard/app/notify"
	"github.com/lysyi3m/rss-hoard/app/refresh"
	"github.com/lysyi3m/rss-hoard/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Hoard", "version", appCfg.Version)

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	prefs, err := config.NewStore(appCfg.PreferencesFile)
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		os.Exit(1)
	}

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)
	folderRepo := database.NewFolderRepository(db)

	fetcher := feed.NewFetcher(&http.Client{Timeout: appCfg.FetchTimeout}, appCfg.UserAgent)
	dispatcher := notify.NewDispatcher(notify.LogPresenter{}, func() bool {
		return prefs.Get().Notifications.Enabled
	})

	engine := refresh.NewEngine(refresh.Deps{
		Feeds:     feedRepo,
		Articles:  articleRepo,
		Folders:   folderRepo,
		Parser:    feed.NewParser(fetcher),
		Extractor: feed.NewContentExtractor(fetcher),
		Fetcher:   fetcher,
		Notifier:  dispatcher,
	})

	scheduler := tasks.NewScheduler(appCfg.QueueSize, appCfg.TaskTimeout)
	scheduler.Start()
	defer scheduler.Stop()

	gate := tasks.NewGate(prefs, tasks.NewInterfaceMonitor())

	var trigger tasks.Trigger
	switch appCfg.Trigger {
	case cfg.TriggerBackground:
		trigger = tasks.NewBackgroundTrigger(scheduler, engine, gate, prefs, appCfg.BackgroundTimeLimit)
	default:
		trigger = tasks.NewTimerTrigger(scheduler, engine, gate, prefs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger.Start(ctx)
	defer trigger.Stop()
	slog.Info("Refresh trigger started", "trigger", appCfg.Trigger, "interval", prefs.Get().Refresh.Interval())

	handler := api.NewHandler(engine, feedRepo, articleRepo, folderRepo, prefs, scheduler, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS Hoard shutdown complete")
}

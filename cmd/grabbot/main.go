package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/grabbot/internal/api"
	"github.com/iconidentify/grabbot/internal/api/handler"
	"github.com/iconidentify/grabbot/internal/config"
	"github.com/iconidentify/grabbot/internal/domain"
	"github.com/iconidentify/grabbot/internal/downloader"
	"github.com/iconidentify/grabbot/internal/linkmatch"
	"github.com/iconidentify/grabbot/internal/repository"
	"github.com/iconidentify/grabbot/internal/service"
	"github.com/iconidentify/grabbot/internal/telegram"
	"github.com/iconidentify/grabbot/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	handlerDrainTimeout = 2 * time.Minute
	retentionInterval   = 6 * time.Hour
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("grabbot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting grabbot",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create download directory", "path", cfg.Storage.TempPath, "error", err)
		os.Exit(1)
	}
	purged := 0
	if cfg.Storage.PurgeOnStart {
		purged, err = downloader.PurgeStale(cfg.Storage.TempPath)
		if err != nil {
			logger.Warn("failed to purge stale downloads", "error", err)
		} else if purged > 0 {
			logger.Info("purged stale downloads", "count", purged)
		}
	}

	fetcher, err := downloader.NewYTDLP(cfg.Download, cfg.Storage.MaxFileSize, logger.With("component", "ytdlp"))
	if err != nil {
		logger.Error("extraction tool unavailable", "error", err)
		os.Exit(1)
	}

	bot, err := telegram.New(cfg.Telegram, logger.With("component", "telegram"))
	if err != nil {
		logger.Error("failed to connect to telegram", "error", err)
		os.Exit(1)
	}
	logger.Info("authorized on telegram", "username", bot.Username())

	events, err := service.NewEventService(cfg.Events, logger.With("component", "events"))
	if err != nil {
		logger.Error("failed to initialize activity log", "error", err)
		os.Exit(1)
	}

	if purged > 0 {
		events.EmitInfo(domain.EventCategoryDisk, "main", "purged stale downloads", domain.EventMetadata{
			"count": purged,
			"path":  cfg.Storage.TempPath,
		})
	}

	ledger := repository.NewInMemoryLinkRepository(repository.LedgerOptions{
		MaxEntries: cfg.Ledger.MaxEntries,
		TTL:        cfg.Ledger.TTL,
	})

	delivery := service.NewDeliveryService(
		linkmatch.New(),
		fetcher,
		ledger,
		bot,
		events,
		cfg.Storage,
		logger.With("component", "delivery"),
	)

	dispatcher := worker.NewDispatcher(bot, delivery, logger.With("component", "dispatcher"))

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	go events.RunRetention(bgCtx, retentionInterval)

	var srv *http.Server
	if cfg.Server.Enabled {
		healthHandler := handler.NewHealthHandler(ledger, delivery, dispatcher, cfg.Storage.TempPath)
		eventHandler := handler.NewEventHandler(events, logger)
		router := api.NewRouter(healthHandler, eventHandler, cfg.Server.APIKey, logger.With("component", "http"))

		srv = &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		go func() {
			logger.Info("starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
				os.Exit(1)
			}
		}()
	}

	dispatcher.Start()
	events.EmitInfo(domain.EventCategorySystem, "main", "bot started", domain.EventMetadata{
		"version":  Version,
		"username": bot.Username(),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelBackground()

	if err := dispatcher.Stop(handlerDrainTimeout); err != nil {
		logger.Error("dispatcher shutdown error", "error", err)
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		cancel()
	}

	events.EmitInfo(domain.EventCategorySystem, "main", "bot stopped", nil)
	if err := events.Close(); err != nil {
		logger.Error("failed to close activity log", "error", err)
	}

	logger.Info("shutdown complete")
}

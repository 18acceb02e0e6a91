package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nivesh/internal/api"
	"nivesh/internal/asset"
	"nivesh/internal/config"
	"nivesh/internal/db"
	"nivesh/internal/gamelog"
	"nivesh/internal/host"
	"nivesh/internal/price"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadHostFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	settings, err := config.LoadGameSettings(cfg.SettingsPath)
	if err != nil {
		logger.Error("load game settings", "path", cfg.SettingsPath, "err", err)
		os.Exit(1)
	}

	dataset, err := price.LoadDataset(cfg.DatasetPath)
	if err != nil {
		logger.Error("load price dataset", "path", cfg.DatasetPath, "err", err)
		os.Exit(1)
	}
	for _, sym := range dataset.Symbols() {
		if _, err := asset.Lookup(sym); err != nil {
			logger.Warn("dataset symbol not in catalog, ignored", "symbol", sym)
		}
	}
	logger.Info("price dataset loaded",
		"path", cfg.DatasetPath, "symbols", len(dataset.Symbols()))

	var sink gamelog.Sink = gamelog.Noop{}
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		pg, err := gamelog.NewPostgres(ctx, pool)
		if err != nil {
			logger.Error("gamelog init failed", "err", err)
			os.Exit(1)
		}
		sink = pg
	}
	defer sink.Close()

	hub, err := host.NewHub(settings, dataset, sink, logger)
	if err != nil {
		logger.Error("session init failed", "err", err)
		os.Exit(1)
	}
	go hub.Run(ctx, cfg.TickEvery)

	server := api.New(cfg, logger, hub, sink)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("nivesh host listening",
		"addr", cfg.Addr, "session", hub.ID().String(), "tick_every", cfg.TickEvery)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

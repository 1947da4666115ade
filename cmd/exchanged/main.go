package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	exchange "github.com/marketgrid/exchange"
	"github.com/marketgrid/exchange/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	exchange.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := exchange.NewRegistry()
	engine := exchange.NewEngine(registry)

	if cfg.DataFile != "" {
		feed := exchange.NewMarketDataFeed(cfg.DataFile, cfg.ReplayInterval, engine)
		registry.OnConnCount(cfg.FeedMinConns, func() {
			feed.Start(ctx)
		})
	}

	server := exchange.NewServer(cfg.Addr, engine, registry, cfg.OutboundBuffer)
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	engine.Shutdown()
	logger.Info("exchange server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

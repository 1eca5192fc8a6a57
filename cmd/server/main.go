package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/reshetovitsme/guild-activity-bot/internal/di"
	channelService "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/service"
	userService "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/service"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	httpServer "github.com/reshetovitsme/guild-activity-bot/internal/transport/http"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	// Setup structured logging with multiple handlers using slog-multi
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	// Use Fanout to send logs to both handlers
	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(multiHandler)
	slog.SetDefault(logger)

	// Setup dependency injection
	injector, err := di.Setup()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Debug() {
		level.Set(slog.LevelDebug)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Get services from DI container
	channelService := do.MustInvoke[*channelService.Service](injector)
	userService := do.MustInvoke[*userService.Service](injector)
	httpServer := do.MustInvoke[*httpServer.Server](injector)
	b, err := do.Invoke[*bot.Bot](injector)
	if err != nil {
		slog.Error("Failed to start telegram bot", "error", err)
		os.Exit(1)
	}

	if err := userService.SeedOperators(); err != nil {
		slog.Error("Failed to seed operators", "error", err)
	}

	// Load the guild directory and start flushing activity
	if err := channelService.Start(ctx); err != nil {
		slog.Error("Failed to start channel directory", "error", err)
		os.Exit(1)
	}

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			cancel()
		}
	}()

	// Start polling updates
	go b.Start(ctx)

	slog.Info("Application started", "port", cfg.HTTPPort, "env", cfg.AppEnv)
	slog.Info("Press Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("Shutting down...")
}

package di

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	activityService "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/service"
	channelRepo "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/repository"
	channelService "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/service"
	feedService "github.com/reshetovitsme/guild-activity-bot/internal/modules/feed/service"
	messageRepo "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/repository"
	messageService "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/service"
	reportRepo "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/repository"
	reportService "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/service"
	userRepo "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/repository"
	userService "github.com/reshetovitsme/guild-activity-bot/internal/modules/user/service"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	httpServer "github.com/reshetovitsme/guild-activity-bot/internal/transport/http"
	telegramHandler "github.com/reshetovitsme/guild-activity-bot/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Channel Repository
	do.Provide(injector, func(i do.Injector) (channelRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := channelRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize channel repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Message Repository
	do.Provide(injector, func(i do.Injector) (messageRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := messageRepo.Open(cfg)
		if err != nil {
			return nil, oops.With("archive_driver", cfg.ArchiveDriver, "context", "failed to initialize message archive").Wrap(err)
		}
		return repo, nil
	})

	// Register User Repository
	do.Provide(injector, func(i do.Injector) (userRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := userRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize user repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Report Repository
	do.Provide(injector, func(i do.Injector) (reportRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := reportRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize report repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Channel Service
	do.Provide(injector, func(i do.Injector) (*channelService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[channelRepo.Repository](i)
		return channelService.New(cfg, repo), nil
	})

	// Register Message Service
	do.Provide(injector, func(i do.Injector) (*messageService.Service, error) {
		repo := do.MustInvoke[messageRepo.Repository](i)
		return messageService.New(repo), nil
	})

	// Register User Service
	do.Provide(injector, func(i do.Injector) (*userService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[userRepo.Repository](i)
		return userService.New(cfg, repo), nil
	})

	// Register Report Service
	do.Provide(injector, func(i do.Injector) (*reportService.Service, error) {
		repo := do.MustInvoke[reportRepo.Repository](i)
		return reportService.New(repo), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		reports := do.MustInvoke[*reportService.Service](i)
		return feedService.New(reports), nil
	})

	// Register Permission Checker (bot is attached once it exists)
	do.Provide(injector, func(i do.Injector) (*telegramHandler.PermissionChecker, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return telegramHandler.NewPermissionChecker(cfg), nil
	})

	// Register Activity Service
	do.Provide(injector, func(i do.Injector) (*activityService.Service, error) {
		channels := do.MustInvoke[*channelService.Service](i)
		permissions := do.MustInvoke[*telegramHandler.PermissionChecker](i)
		messages := do.MustInvoke[*messageService.Service](i)
		reports := do.MustInvoke[*reportService.Service](i)
		return activityService.New(channels, permissions, messages, reports), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		channels := do.MustInvoke[*channelService.Service](i)
		messages := do.MustInvoke[*messageService.Service](i)
		activity := do.MustInvoke[*activityService.Service](i)
		users := do.MustInvoke[*userService.Service](i)
		permissions := do.MustInvoke[*telegramHandler.PermissionChecker](i)
		return telegramHandler.New(cfg, channels, messages, activity, users, permissions), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		activity := do.MustInvoke[*activityService.Service](i)
		feeds := do.MustInvoke[*feedService.Service](i)
		reports := do.MustInvoke[*reportService.Service](i)
		server := httpServer.New(cfg, activity, feeds, reports)
		server.SetLogger(slog.Default())
		return server, nil
	})

	// Register Bot (needs to be initialized after handlers are ready)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*telegramHandler.Handler](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(handler.HandleUpdate),
			bot.WithMiddlewares(handler.ArchiveMiddleware),
			bot.WithServerURL(cfg.TelegramAPIURL),
			bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "channel_post", "my_chat_member"}),
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}

		me, err := b.GetMe(context.Background())
		if err != nil {
			return nil, oops.With("context", "failed to get bot identity").Wrap(err)
		}

		// Register bot commands
		handler.RegisterCommands(b)

		// Permission checks run as the bot itself
		permissions := do.MustInvoke[*telegramHandler.PermissionChecker](i)
		permissions.SetBot(b, me.ID)

		slog.Info("Telegram bot ready", "username", me.Username, "id", me.ID)
		return b, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	ctx := context.Background()

	// Shutdown bot if it exists
	if b, err := do.Invoke[*bot.Bot](injector); err == nil && b != nil {
		b.Close(ctx)
	}

	if server, err := do.Invoke[*httpServer.Server](injector); err == nil && server != nil {
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Error stopping HTTP server", "error", err)
		}
	}

	// Shutdown channel service if it exists
	if channelService, err := do.Invoke[*channelService.Service](injector); err == nil && channelService != nil {
		channelService.Stop()
	}

	// The archive closes last so in-flight queries can drain
	if messageService, err := do.Invoke[*messageService.Service](injector); err == nil && messageService != nil {
		if err := messageService.Close(); err != nil {
			return oops.With("context", "failed to close message archive").Wrap(err)
		}
	}

	return nil
}

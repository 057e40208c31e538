package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vkopt-message-parser/cmd/bot/config"
	"vkopt-message-parser/internal/apiclient"
	"vkopt-message-parser/internal/bot"
	"vkopt-message-parser/internal/log"
)

func main() {
	configPath := os.Getenv("BOT_CONFIG_PATH")
	if configPath == "" {
		configPath = "bot_config.yml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bot config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate bot config: %v\n", err)
		os.Exit(1)
	}

	// Токен бота попадает в URL запросов библиотеки, поэтому ее вывод идет через маскирующий логгер.
	logger, err := log.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	if err := tgbotapi.SetLogger(&log.TGBotAPIAdapter{Logger: logger}); err != nil {
		slog.Warn("failed to set telegram bot api logger", slog.String("error", err.Error()))
	}

	taskStore := bot.NewTaskStore()
	var backends []apiclient.Backend
	for _, u := range cfg.Bot.Backends() {
		backends = append(backends, apiclient.New(u, apiclient.WithTimeout(cfg.Bot.HTTPTimeout())))
	}
	serverClient, err := apiclient.NewRouter(backends,
		apiclient.WithHealthCheckInterval(cfg.Bot.HealthCheckInterval()),
		apiclient.WithRouterLogger(logger.With(slog.String("component", "router"))),
	)
	if err != nil {
		slog.Error("failed to create backend router", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer serverClient.Stop()

	b, err := bot.NewBot(cfg.Bot, serverClient, taskStore, logger.With(slog.String("component", "bot")))
	if err != nil {
		slog.Error("failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bot created successfully, starting...", slog.Any("backends", cfg.Bot.Backends()))
	b.Start(ctx)
	slog.Info("Bot stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sevlyar/go-daemon"

	"vkopt-message-parser/internal/adapters/parser"
	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/core/services"
	vklog "vkopt-message-parser/internal/log"
	"vkopt-message-parser/internal/pkg/config"
	"vkopt-message-parser/internal/server"
	"vkopt-message-parser/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 2. Отсоединение от терминала. Родительский процесс завершается сразу,
	// вывод дочернего перенаправляется в server.log_file.
	if cfg.Server.Daemon {
		dctx, err := daemonContext(cfg)
		if err != nil {
			return err
		}
		child, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		if child != nil {
			fmt.Printf("Daemon started, pid %d\n", child.Pid)
			return nil
		}
		defer dctx.Release()
	}

	// 3. Инициализация логгера
	logger, err := vklog.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// 4. Инициализация зависимостей
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	taskStore := server.NewTaskStore()
	cacheStore := cache.NewCacheStore(cache.WithMaxEntries(cfg.Processing.CacheMaxEntries))
	converter := services.NewConversionService(
		parser.NewHTMLParser(parser.WithLogger(logger)),
		services.NewExtractionService(),
		services.WithPoolSize(cfg.Processing.PoolSize),
		services.WithTotalTimeout(cfg.Processing.TaskTimeout),
		services.WithLogger(logger),
	)
	processor := usecase.NewProcessChatUseCase(converter, cacheStore, cfg.Processing.CacheTTL, usecase.WithLogger(logger))

	// 5. Создание HTTP-сервера
	srv, err := server.New(cfg, processor, taskStore, cacheStore, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 6. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", cfg.Address(), "max_upload_size", cfg.Server.MaxUploadSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			appCancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Signal received, shutting down...")
	case <-appCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	logger.Info("Application exited gracefully")
	return nil
}

func daemonContext(cfg *config.Config) (*daemon.Context, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return &daemon.Context{
		PidFileName: cfg.Server.PidFile,
		PidFilePerm: 0o644,
		LogFileName: cfg.Server.LogFile,
		LogFilePerm: 0o640,
		WorkDir:     wd,
		Umask:       0o027,
		Args:        os.Args,
	}, nil
}

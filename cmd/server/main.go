package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/config"
	"github.com/garyjia/bid-reconciler/internal/container"
	httpapi "github.com/garyjia/bid-reconciler/internal/interfaces/http"
	"github.com/garyjia/bid-reconciler/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional env file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bid reconciliation service",
		zap.String("config", *configPath),
		zap.String("base_currency", cfg.Pipeline.BaseCurrency),
		zap.String("database", cfg.Database.Path))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
		c.Services().Import,
		c.Dispatcher(),
		c.Decoder(),
		container.NewLoggerAdapter(logger),
	)

	// Blocks until a signal arrives or the listener fails
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}

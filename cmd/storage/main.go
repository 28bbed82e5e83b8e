package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halodb/storage-node/internal/checker"
	"github.com/halodb/storage-node/internal/config"
	"github.com/halodb/storage-node/internal/metrics"
	"github.com/halodb/storage-node/internal/model"
	"github.com/halodb/storage-node/internal/server"
	"github.com/halodb/storage-node/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.Strings("data_dirs", cfg.Storage.DataDirs))

	locations := make([]model.StorageLocation, 0, len(cfg.Storage.DataDirs))
	for _, dir := range cfg.Storage.DataDirs {
		loc, err := model.ParseStorageLocation(dir)
		if err != nil {
			logger.Fatal("Invalid storage location in configuration",
				zap.String("entry", dir),
				zap.Error(err))
		}
		locations = append(locations, loc)
	}

	m := metrics.NewMetrics(cfg.Server.NodeID)

	healthServer := server.NewHealthServer(&server.HealthServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.HealthPort,
	}, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("Failed to start health server", zap.Error(err))
	}

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = server.NewMetricsServer(&server.MetricsServerConfig{
			Port: cfg.Metrics.Port,
		}, m, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	locationChecker, err := checker.NewStorageLocationChecker(&checker.Config{
		MaxAllowedTimeForCheck:     cfg.DiskCheck.Timeout,
		ExpectedPermission:         cfg.Storage.Permission(),
		MaxVolumeFailuresTolerated: cfg.DiskCheck.FailedVolumesTolerated,
		MinCheckGap:                cfg.DiskCheck.MinGap,
		Workers:                    cfg.DiskCheck.Workers,
		QueueSize:                  cfg.DiskCheck.QueueSize,
		DegradedUsagePercent:       cfg.DiskCheck.DegradedUsagePercent,
	}, m, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage location checker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Checking storage locations", zap.Int("count", len(locations)))
	good, err := locationChecker.Check(ctx, locations)
	if err != nil {
		// The node must not start with an unusable storage layer.
		logger.Fatal("Storage location check failed", zap.Error(err))
	}

	goodDirs := make([]string, 0, len(good))
	for _, loc := range good {
		goodDirs = append(goodDirs, loc.Path)
	}
	if metricsServer != nil {
		metricsServer.SetUsableVolumes(goodDirs)
	}
	healthServer.SetServing(true)

	status := model.NodeStatusHealthy
	if len(good) < len(locations) {
		status = model.NodeStatusDegraded
	}

	var gossipSvc *service.GossipService
	if cfg.Gossip.Enabled {
		gossipSvc, err = service.NewGossipService(&service.GossipConfig{
			BindPort:       cfg.Gossip.BindPort,
			SeedNodes:      cfg.Gossip.SeedNodes,
			GossipInterval: cfg.Gossip.GossipInterval,
			ProbeTimeout:   cfg.Gossip.ProbeTimeout,
			ProbeInterval:  cfg.Gossip.ProbeInterval,
		}, cfg.Server.NodeID, logger)
		if err != nil {
			logger.Error("Failed to initialize gossip service", zap.Error(err))
		} else {
			gossipSvc.PublishStartupReport(model.StartupReport{
				NodeID:        cfg.Server.NodeID,
				Status:        status,
				GoodVolumes:   len(good),
				FailedVolumes: len(locations) - len(good),
				Timestamp:     time.Now().Unix(),
			})
			if err := gossipSvc.Join(); err != nil {
				logger.Warn("Failed to join gossip cluster", zap.Error(err))
			}
		}
	}

	logger.Info("Storage node ready",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("status", string(status)),
		zap.Strings("usable_volumes", goodDirs))

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	locationChecker.Shutdown(cfg.Server.ShutdownTimeout)
	if gossipSvc != nil {
		if err := gossipSvc.Shutdown(); err != nil {
			logger.Error("Failed to shut down gossip service", zap.Error(err))
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}
	healthServer.Stop()
}

// initLogger initializes the zap logger
func initLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	return zapConfig.Build()
}

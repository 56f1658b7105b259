package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"beraflow/config"
	"beraflow/internal/collector"
	"beraflow/internal/dashboard"
	"beraflow/internal/fetch"
	"beraflow/internal/live"
	"beraflow/internal/store"
	"beraflow/internal/venue"
	"beraflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Beraflow.Name,
		"version": cfg.Beraflow.Version,
		"symbol":  cfg.Asset.Symbol,
	}).Info("starting beraflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatchRegion != "" {
		logger.InitCloudWatch(cfg.Metrics.CloudWatchRegion, cfg.Metrics.CloudWatchNamespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" || cfg.Metrics.CloudWatchRegion != "" {
		logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)
	}

	st, err := store.NewStore(cfg.Storage.DataDir)
	if err != nil {
		log.WithError(err).Error("failed to open data store")
		os.Exit(1)
	}

	client := fetch.NewClient(cfg.Fetch)
	adapters := venue.All(cfg, client)
	coll := collector.New(cfg, adapters, st)
	liveSvc := live.NewService(cfg, client)
	server := dashboard.NewServer(cfg.Server, liveSvc, st)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		coll.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.WithError(err).Error("dashboard server failed")
			cancel()
		}
	}()

	log.WithFields(logger.Fields{
		"address":  server.Address(),
		"interval": cfg.Collector.Interval,
		"data_dir": cfg.Storage.DataDir,
	}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("beraflow stopped")
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"setlist/internal/config"
	"setlist/internal/database"
	"setlist/internal/events"
	"setlist/internal/logging"
	"setlist/internal/server"
	"setlist/internal/tunnel"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./setlist.toml", "path to the TOML config file")
	flag.Parse()

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Error configuring logging")
	}
	defer logCloser.Close()

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path, cfg.Database.MaxConnections, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing database")
	}
	defer db.Close()

	var opts []server.Option

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		publisher, err := events.NewRedisPublisher(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Channel, logger)
		cancel()
		if err != nil {
			logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unavailable, playlist events disabled")
		} else {
			opts = append(opts, server.WithPublisher(publisher))
			logger.WithFields(logrus.Fields{
				"addr":    cfg.Redis.Addr,
				"channel": cfg.Redis.Channel,
			}).Info("Publishing playlist events")
		}
	}

	tun, err := tunnel.NewService(&cfg.Ngrok, logger)
	if err != nil {
		logger.WithError(err).Warn("ngrok tunnel disabled")
	} else if tun != nil {
		opts = append(opts, server.WithTunnel(tun))
	}

	playlistServer, err := server.NewPlaylistServer(cfg, db, logger, opts...)
	if err != nil {
		logger.WithError(err).Fatal("Error creating playlist server")
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- playlistServer.Start()
	}()

	select {
	case <-c:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Playlist server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := playlistServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}
}

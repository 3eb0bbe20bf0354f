package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"setlist/internal/cache"
	"setlist/internal/config"
	"setlist/internal/database"
	"setlist/internal/events"
	"setlist/internal/thumbnail"
	"setlist/internal/tunnel"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PlaylistServer serves the playlist HTTP API used by the create/edit form
type PlaylistServer struct {
	db         *database.Database
	config     *config.Config
	logger     *logrus.Logger
	thumbnails *thumbnail.Store
	cache      *cache.PlaylistCache
	events     events.Publisher
	tunnel     *tunnel.Service

	httpServer *http.Server
}

// Option customises a PlaylistServer
type Option func(*PlaylistServer)

// WithPublisher sets the playlist event publisher (default: discard)
func WithPublisher(p events.Publisher) Option {
	return func(ps *PlaylistServer) {
		ps.events = p
	}
}

// WithTunnel exposes the server through an ngrok tunnel on Start
func WithTunnel(t *tunnel.Service) Option {
	return func(ps *PlaylistServer) {
		ps.tunnel = t
	}
}

// NewPlaylistServer creates a new playlist server instance
func NewPlaylistServer(cfg *config.Config, db *database.Database, logger *logrus.Logger, opts ...Option) (*PlaylistServer, error) {
	if logger == nil {
		logger = logrus.New()
	}

	store, err := thumbnail.NewStore(cfg.Storage.ThumbnailDir, cfg.Storage.MaxThumbnailEdge, cfg.Storage.MaxSourcePixels, logger)
	if err != nil {
		return nil, err
	}

	ps := &PlaylistServer{
		db:         db,
		config:     cfg,
		logger:     logger,
		thumbnails: store,
		cache:      cache.NewPlaylistCache(10 * time.Minute),
		events:     events.Nop{},
	}

	for _, opt := range opts {
		opt(ps)
	}

	return ps, nil
}

// Router builds the HTTP handler with all routes and middleware
func (ps *PlaylistServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(ps.panicRecoveryMiddleware)
	r.Use(ps.requestLoggingMiddleware)
	r.Use(ps.metricsMiddleware)
	r.Use(ps.corsMiddleware)

	r.Get("/health", ps.handleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/thumbnails/*", http.StripPrefix(thumbnailURLPrefix, http.FileServer(http.Dir(ps.thumbnails.Dir()))))

	r.Route("/playlist", func(r chi.Router) {
		r.Get("/", ps.handleListPlaylists)
		r.Post("/", ps.handleCreatePlaylist)
		r.Get("/{id}", ps.handleGetPlaylist)
		r.Patch("/{id}", ps.handleUpdatePlaylist)
		r.Delete("/{id}", ps.handleDeletePlaylist)
	})

	return r
}

// Start listens on the configured address and blocks until Shutdown
func (ps *PlaylistServer) Start() error {
	localAddress := fmt.Sprintf("http://%s", ps.config.GetAddress())

	ps.httpServer = &http.Server{
		Addr:         ps.config.GetAddress(),
		Handler:      ps.Router(),
		ReadTimeout:  time.Duration(ps.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(ps.config.Server.WriteTimeout) * time.Second,
	}

	if ps.tunnel != nil {
		if err := ps.tunnel.StartTunnel(context.Background(), localAddress); err != nil {
			ps.logger.WithError(err).Warn("Could not start ngrok tunnel")
		}
	}

	ps.logger.WithFields(logrus.Fields{
		"address":       localAddress,
		"thumbnail_dir": ps.thumbnails.Dir(),
	}).Info("Playlist service starting")

	if err := ps.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the playlist server
func (ps *PlaylistServer) Shutdown(ctx context.Context) error {
	ps.logger.Info("Shutting down playlist service...")

	var err error
	if ps.httpServer != nil {
		err = ps.httpServer.Shutdown(ctx)
	}
	if ps.tunnel != nil {
		if terr := ps.tunnel.Stop(); terr != nil {
			ps.logger.WithError(terr).Warn("Failed to stop ngrok tunnel")
		}
	}
	if perr := ps.events.Close(); perr != nil {
		ps.logger.WithError(perr).Warn("Failed to close event publisher")
	}
	ps.cache.Close()

	ps.logger.Info("Playlist service shutdown complete")
	return err
}

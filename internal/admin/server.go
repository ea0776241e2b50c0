// Package admin serves a read-only JSON API over the recorded sessions.
package admin

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/focustrack/internal/stats"
	"github.com/goodtune/focustrack/internal/storage"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/rs/zerolog"
)

// Reporter answers the queries behind the API.
type Reporter interface {
	CurrentSession(ctx context.Context) (*storage.Session, error)
	Sessions(ctx context.Context, w stats.Window) ([]storage.Session, error)
	TotalTime(ctx context.Context, w stats.Window) (float64, error)
	TopApplications(ctx context.Context, w stats.Window, limit int) ([]stats.AppUsage, error)
	DetailedHourlyUsage(ctx context.Context, date string, appsPerHour int) ([24]stats.HourlyUsage, error)
	DaysTracked(ctx context.Context) (float64, error)
	Now() timeconv.Timestamp
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr            string
	TopLimit              int
	AppsPerHour           int
	OtherThresholdPercent float64
}

// Server represents the API HTTP server.
type Server struct {
	config   Config
	server   *http.Server
	router   *gin.Engine
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, reporter Reporter, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	if logger.GetLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router without default middleware (we use custom JSON logging)
	router := gin.New()
	router.Use(gin.Recovery())

	SetupRoutes(router, &Deps{
		Reporter: reporter,
		Config:   cfg,
		Logger:   logger,
	})

	return &Server{
		config: cfg,
		router: router,
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server failed")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}

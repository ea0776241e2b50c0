package metrics

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracker metrics
	TrackerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_tracker_transitions_total",
			Help: "Tracker ticks by resulting transition",
		},
		[]string{"transition"}, // idle, switch, unchanged
	)

	SessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_sessions_opened_total",
			Help: "Total sessions opened",
		},
	)

	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_sessions_closed_total",
			Help: "Total sessions closed",
		},
		[]string{"reason"}, // switch, idle, shutdown, repair
	)

	Tracking = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focustrack_tracking",
			Help: "1 while a session is being tracked, 0 when idle",
		},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_store_errors_total",
			Help: "Failed session store operations",
		},
		[]string{"operation"},
	)

	ObserverErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_observer_errors_total",
			Help: "Failed foreground window samples",
		},
	)

	IntegrityRepairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_integrity_repairs_total",
			Help: "Stale open sessions closed by the integrity check",
		},
	)

	StepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focustrack_step_duration_seconds",
			Help:    "Duration of one sample-and-record step",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Report metrics
	ReportCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_report_cache_hits_total",
			Help: "Hourly report cache hits",
		},
	)

	ReportCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_report_cache_misses_total",
			Help: "Hourly report cache misses",
		},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_api_requests_total",
			Help: "Total report API requests",
		},
		[]string{"route", "status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TrackerTransitions,
		SessionsOpened,
		SessionsClosed,
		Tracking,
		StoreErrors,
		ObserverErrors,
		IntegrityRepairs,
		StepDuration,
		ReportCacheHits,
		ReportCacheMisses,
		APIRequestsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: NewRouter(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// NewRouter returns the handler serving /metrics and /health.
func NewRouter() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	return router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/app"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/metrics"
)

// sampleInterval is how often the health-history ring buffer records a new
// point for the chart endpoint.
const sampleInterval = 5 * time.Minute

// Server wraps the HTTP server and the App it exposes. Grounded on the
// teacher's internal/server.Server (server.go).
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger

	history       *healthHistory
	chartRenderer func([]metrics.HealthHistoryPoint) ([]byte, error)

	samplerCancel context.CancelFunc
}

// NewServer builds the HTTP server for a, registering routes and the
// standard middleware chain. It does not start listening; call Start.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:           a,
		logger:        a.Logger,
		history:       newHealthHistory(0),
		chartRenderer: metrics.RenderHealthHistoryChart,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(a.Metrics)

	mux := http.NewServeMux()
	s.registerRoutes(mux, registry)

	handler := applyMiddleware(mux, a.Logger)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes wires the webhook, health, metrics, chart, and websocket
// endpoints onto mux.
func (s *Server) registerRoutes(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/health/chart.png", s.handleHealthChart)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start launches the health-history sampler and the HTTP server
// (blocking). Call in a goroutine.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.samplerCancel = cancel
	go s.history.runSampler(ctx, s.app.Health, sampleInterval)

	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server and stops the sampler.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.samplerCancel != nil {
		s.samplerCancel()
	}
	return s.server.Shutdown(ctx)
}

// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/config"
	"github.com/vyrodovalexey/groceries-api/internal/handler"
	"github.com/vyrodovalexey/groceries-api/internal/middleware"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

// MetricsPath is the Prometheus scrape endpoint.
const MetricsPath = "/metrics"

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	config      *config.Config
	logger      *zap.Logger
	registry    *prometheus.Registry
	feedHandler *handler.FeedHandler
}

// New creates a new Server instance. When metrics are enabled the store is
// wrapped with an InstrumentedStore and every collector is registered with
// reg; a nil reg gets a fresh registry.
func New(cfg *config.Config, logger *zap.Logger, itemStore store.Store, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: reg,
	}

	if cfg.MetricsEnabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		itemStore = store.NewInstrumentedStore(itemStore, reg)
	}

	s.setupMiddleware()
	s.setupRoutes(itemStore)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	httpLogger := s.logger.Named("http")

	// First entry is outermost.
	chain := []middleware.Middleware{
		middleware.Recovery(httpLogger),
		middleware.RequestID(),
	}
	if s.config.MetricsEnabled {
		chain = append(chain, middleware.NewHTTPMetrics(s.registry).Middleware())
	}
	chain = append(chain,
		middleware.Logging(httpLogger),
		middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders),
	)

	s.router.Use(mux.MiddlewareFunc(middleware.Chain(chain...)))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(itemStore store.Store) {
	var notifier handler.Notifier
	if s.config.FeedEnabled {
		s.feedHandler = handler.NewFeedHandler(s.logger.Named("feed"))
		s.feedHandler.RegisterRoutes(s.router)
		notifier = s.feedHandler
	}

	handler.NewGroceriesHandler(itemStore, notifier, s.logger.Named("groceries")).RegisterRoutes(s.router)
	handler.NewDiagnosticsHandler(s.logger.Named("diagnostics")).RegisterRoutes(s.router)

	// mux only runs middleware on a matched route, so preflight requests need
	// a route of their own for CORS to answer them.
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if s.config.MetricsEnabled {
		if s.feedHandler != nil {
			feed := s.feedHandler
			s.registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "groceries_feed_clients",
					Help: "Number of connected change feed clients",
				},
				func() float64 { return float64(feed.ClientCount()) },
			))
		}

		metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
		s.router.Handle(MetricsPath, metricsHandler).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server. It returns nil once Shutdown has been called.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("feed_enabled", s.config.FeedEnabled),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Hijacked feed connections are not tracked by http.Server.
	if s.feedHandler != nil {
		s.feedHandler.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

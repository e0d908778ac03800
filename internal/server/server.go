// Package server provides the HTTP API for marketfacts.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/domain"
	"github.com/aristath/marketfacts/internal/llm"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/aristath/marketfacts/internal/scheduler"
)

// FactResolver resolves market facts across providers
type FactResolver interface {
	ResolveHistoricalClose(ctx context.Context, symbol string, date time.Time) (marketdata.Resolution, error)
	Quote(ctx context.Context, symbol string) (*domain.Quote, error)
	Recommendations(ctx context.Context, symbol string) ([]domain.RecommendationTrend, error)
	Earnings(ctx context.Context, symbol string) ([]domain.EarningsSurprise, error)
	PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error)
}

// ChatClient submits rate-limited chat completions
type ChatClient interface {
	Backend() string
	Configured() bool
	ChatCompletion(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (*llm.Response, error)
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	DevMode  bool
	Resolver FactResolver
	LLM      ChatClient
	Cache    *clientdata.Cache

	// Dispatched reports how many calls the LLM pacing queue has released. Optional.
	Dispatched func() int64
	// Jobs reports background job status. Optional.
	Jobs func() []scheduler.JobStatus
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	port      int
	resolver  FactResolver
	llm       ChatClient
	system    *SystemHandlers
	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		resolver:  cfg.Resolver,
		llm:       cfg.LLM,
		startedAt: time.Now(),
	}
	s.system = NewSystemHandlers(cfg.Cache, cfg.Dispatched, cfg.Jobs, s.log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// WriteTimeout leaves room for a full lookback scan and LLM retries
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(150 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/prices/{symbol}/close", s.handleHistoricalClose)
		r.Get("/quotes/{symbol}", s.handleQuote)
		r.Get("/recommendations/{symbol}", s.handleRecommendations)
		r.Get("/earnings/{symbol}", s.handleEarnings)
		r.Get("/price-targets/{symbol}", s.handlePriceTarget)

		r.Post("/llm/chat", s.handleChat)

		r.Get("/system/status", s.system.HandleStatus)
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

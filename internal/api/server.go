package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/monitor"
)

// Server is the main HTTP server for the NLQ API.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	cfg        *config.Config
	startTime  time.Time
}

// Health probes for the dependencies the health endpoint reports on.
// A nil probe means the collaborator never initialized; that counts as
// unhealthy, since a server without its pipeline cannot serve queries.
type Health struct {
	DB     func(ctx context.Context) bool
	Exec   func(ctx context.Context) bool
	LLM    func(ctx context.Context) bool
	Vector func(ctx context.Context) bool
}

func probe(ctx context.Context, f func(ctx context.Context) bool) bool {
	return f != nil && f(ctx)
}

// NewServer creates and configures the HTTP server with all routes and middleware.
func NewServer(cfg *config.Config, handlers *Handlers, health Health, metrics *monitor.Metrics) *Server {
	s := &Server{
		handlers:  handlers,
		cfg:       cfg,
		startTime: time.Now(),
	}

	if len(cfg.Security.AllowedKeys) == 0 {
		if cfg.Security.AllowUnauthenticated {
			log.Warn().Msg("no API keys configured — allow_unauthenticated is true, all requests will be accepted")
		} else {
			log.Warn().Msg("no API keys configured and allow_unauthenticated is false — all requests will be rejected")
		}
	}

	// NLQ and dashboard API — wrapped with auth
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/nlq/query", handlers.HandleQuery)
	apiMux.HandleFunc("POST /api/nlq/generate-sql", handlers.HandleGenerateSQL)
	apiMux.HandleFunc("POST /api/nlq/execute-sql", handlers.HandleExecuteSQL)
	apiMux.HandleFunc("POST /api/nlq/schema/refresh", handlers.HandleRefreshSchema)
	apiMux.HandleFunc("GET /api/nlq/history", handlers.HandleListQueries)
	apiMux.HandleFunc("GET /api/nlq/history/{id}", handlers.HandleGetQuery)
	apiMux.HandleFunc("GET /api/dashboard/revenue-trend", handlers.HandleRevenueTrend)
	apiMux.HandleFunc("GET /api/dashboard/top-products", handlers.HandleTopProducts)
	apiMux.HandleFunc("GET /api/dashboard/sales-summary", handlers.HandleSalesSummary)

	authedAPI := AuthMiddleware(cfg.Security.AllowedKeys, cfg.Security.AllowUnauthenticated)(apiMux)

	// Top-level mux: health/metrics bypass auth, everything else goes through auth
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/nlq/health", s.handleHealth(health))
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", authedAPI)

	// Apply middleware chain (outermost first)
	var handler http.Handler = mux
	handler = MetricsMiddleware(metrics)(handler)
	handler = RateLimitMiddleware(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)(handler)
	handler = MaxBodyMiddleware(cfg.Server.MaxRequestBody)(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening for requests. Uses TLS if configured.
func (s *Server) Start() error {
	if s.cfg.TLS.Enabled {
		log.Info().
			Str("addr", s.httpServer.Addr).
			Str("cert", s.cfg.TLS.CertFile).
			Msg("starting HTTPS server with TLS")

		s.httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		return s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	log.Warn().Msg("TLS not enabled — running plain HTTP (not recommended for production)")
	log.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(health Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbOK := probe(r.Context(), health.DB)
		execOK := probe(r.Context(), health.Exec)
		llmOK := probe(r.Context(), health.LLM)
		vecOK := probe(r.Context(), health.Vector)

		resp := HealthResponse{
			Status:      "ok",
			Database:    dbOK && execOK,
			LLM:         llmOK,
			VectorIndex: vecOK,
			Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		}

		if !dbOK || !execOK || !llmOK || !vecOK {
			resp.Status = "degraded"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, resp)
	}
}

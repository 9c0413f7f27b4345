package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solmoney/service/config"
	"github.com/brojonat/solmoney/service/metrics"
	"github.com/brojonat/solmoney/service/transfer"
	"github.com/brojonat/solmoney/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /health. It is set at build time with
// -ldflags "-X github.com/brojonat/solmoney/service/server.Version=...".
var Version = "dev"

// Server represents the HTTP server for the transfer front end.
type Server struct {
	addr         string
	cfg          *config.Config
	wallet       *wallet.Provider
	form         *transfer.Form
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
// Call WithTemplates to enable the HTML page.
func New(addr string, cfg *config.Config, provider *wallet.Provider, form *transfer.Form, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		wallet:       provider,
		form:         form,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Wallet context
	s.handle(mux, "GET /api/v1/wallet", handleGetWallet(s.wallet, s.logger))
	s.handle(mux, "POST /api/v1/wallet/connect", handleConnectWallet(s.wallet, s.form, s.logger))
	s.handle(mux, "POST /api/v1/wallet/disconnect", handleDisconnectWallet(s.wallet, s.form, s.logger))

	// Transfer form
	s.handle(mux, "POST /api/v1/transfers", handleSubmitTransfer(s.form, s.logger))
	s.handle(mux, "POST /api/v1/airdrops", handleRequestAirdrop(s.form, s.logger))
	s.handle(mux, "GET /api/v1/form", handleGetForm(s.form))

	// SSE streaming endpoint (if SSE publisher is configured)
	if s.ssePublisher != nil {
		s.handle(mux, "GET /api/v1/stream/submissions", handleStreamSubmissions(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoint disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		s.handle(mux, "GET /{$}", handleIndexPage(s.renderer, s.wallet, s.form))
		s.handle(mux, "POST /transfer", handleTransferForm(s.form))
		s.handle(mux, "POST /airdrop", handleAirdropForm(s.form))
		s.handle(mux, "POST /wallet/connect", handleConnectWalletForm(s.wallet, s.form))
		s.handle(mux, "POST /wallet/disconnect", handleDisconnectWalletForm(s.wallet, s.form))
		mux.HandleFunc("GET /favicon.ico", handleFavicon())
		mux.HandleFunc("GET /favicon.svg", handleFavicon())
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"status":   "ok",
			"version":  Version,
			"network":  s.wallet.Network(),
			"endpoint": s.wallet.Endpoint(),
		}, http.StatusOK)
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(crossOriginProtection().Handler(mux))
}

// crossOriginProtection rejects browser POSTs issued by other sites. Requests
// without Sec-Fetch-Site or Origin, such as the CLI's, pass through.
func crossOriginProtection() *http.CrossOriginProtection {
	p := http.NewCrossOriginProtection()
	p.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeKindError(w, "cross-origin request rejected", kindForbidden, http.StatusForbidden)
	}))
	return p
}

// handle registers h under pattern, wrapped with request metrics labelled
// by the pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	// Submissions block until confirmation, so writes may take up to the
	// confirmation timeout.
	writeTimeout := 15 * time.Second
	if s.cfg != nil {
		writeTimeout += s.cfg.ConfirmTimeout
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware opens the read-only routes to other origins and handles
// OPTIONS preflight requests. Mutating methods get no CORS headers, so
// browsers refuse cross-origin JSON submissions at preflight.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

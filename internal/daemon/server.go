package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/chat"
	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/llm/configbuilder"
	"github.com/chatloom/chatloom/internal/mcpcontext"
	"github.com/chatloom/chatloom/internal/memory"
	"github.com/chatloom/chatloom/internal/observability"
	chatrpc "github.com/chatloom/chatloom/internal/rpc/chat"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts the chat API plus health and metrics endpoints.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *memory.Store
	handler *chatrpc.Handler
	service *chat.Service
	metrics *observability.Metrics
}

// NewServer constructs a daemon instance and opens the conversation store.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	metrics := observability.NewMetrics()

	store, err := memory.Open(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	var collector chat.ContextCollector
	var discovery chatrpc.ToolDiscovery
	if cfg.MCP.Enabled {
		mcpCollector := mcpcontext.NewCollector(cfg.MCP, nil, logger, metrics)
		collector = mcpCollector
		discovery = mcpCollector
	}

	service := chat.NewService(cfg, registry, store, collector, logger, metrics)
	handler := chatrpc.NewHandler(service, discovery, logger, metrics)

	return &Server{cfg: cfg, logger: logger, store: store, handler: handler, service: service, metrics: metrics}, nil
}

// Close releases the conversation store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/v1/", s.handler.Routes())

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	if transport != "rest" {
		path, connectHandler := chatrpc.NewConnectHandler(s.service, s.metrics)
		mux.Handle(path, connectHandler)
	}

	handler := http.Handler(mux)
	if transport != "rest" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting chatloom daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down chatloom daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

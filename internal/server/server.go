package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tripunite/gateway/internal/api"
	_ "github.com/tripunite/gateway/internal/apidocs"
	"github.com/tripunite/gateway/internal/auth"
	"github.com/tripunite/gateway/internal/config"
	"github.com/tripunite/gateway/internal/middleware"
)

const readyTimeout = 2 * time.Second

// Pinger is a backing service checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	AuthService *auth.Service
	Realtime    *api.RealtimeHandler
	WSHandler   http.Handler
	RateLimiter *middleware.RateLimiter
	// Ready names the services that must answer before /readyz reports ready.
	Ready  map[string]Pinger
	Logger *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewHandler(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg *config.Config, deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	registerRoutes(mux, deps)

	middlewares := []Middleware{
		requestIDMiddleware,
		corsMiddleware(cfg.AllowedOrigins),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	}
	if deps.RateLimiter != nil {
		middlewares = append(middlewares, deps.RateLimiter.Middleware)
	}

	return chainMiddleware(mux, middlewares...)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Ready check - verifies store and pubsub connectivity
	mux.HandleFunc("GET /readyz", readyHandler(deps.Ready, deps.Logger))

	// =========================================================================
	// Realtime routes
	// =========================================================================
	authMiddleware := auth.Middleware(deps.AuthService, deps.Logger)

	mux.Handle("GET /api/v1/realtime/online", authMiddleware(http.HandlerFunc(deps.Realtime.Online)))
	mux.Handle("GET /api/v1/realtime/ice-servers", authMiddleware(http.HandlerFunc(deps.Realtime.ICEServers)))
	mux.HandleFunc("POST /api/v1/realtime/emit", deps.Realtime.Emit)

	// =========================================================================
	// WebSocket route (authenticates its own handshake)
	// =========================================================================
	mux.Handle("GET /ws", deps.WSHandler)

	// =========================================================================
	// API docs
	// =========================================================================
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func readyHandler(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "service", name, "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","error":"` + name + ` unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tripunite/gateway/internal/domain"
)

// Authenticator verifies the credentials on an upgrade request.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (domain.Identity, error)
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler. Browser upgrades are accepted only from
// allowedOrigins; "*" allows any origin.
func NewHandler(hub *Hub, auth Authenticator, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With("component", "websocket"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP authenticates the request, upgrades it and runs the connection until the
// peer goes away. Nothing is registered for a request that fails authentication.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.AuthenticateRequest(r)
	if err != nil {
		h.logger.Debug("websocket handshake rejected", "remote_addr", r.RemoteAddr, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": domain.ErrUnauthenticated.Error(),
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, identity, h.logger)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	// The request context ends when ServeHTTP returns, so the connection gets its own
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.WritePump(ctx)
	client.ReadPump(ctx) // Block here until client disconnects
}

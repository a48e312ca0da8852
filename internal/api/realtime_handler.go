package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tripunite/gateway/internal/auth"
	"github.com/tripunite/gateway/internal/webrtc"
)

// InternalKeyHeader carries the shared secret for service-to-service calls.
const InternalKeyHeader = "X-Internal-Key"

const maxEmitBodyBytes = 1 << 20

// PresenceReader reports who is connected to this gateway.
type PresenceReader interface {
	Online() []string
}

// Emitter forwards an event to connected users through pubsub.
type Emitter interface {
	Emit(ctx context.Context, event string, users []string, data interface{}) error
}

// RealtimeHandler serves the REST side of the realtime gateway.
type RealtimeHandler struct {
	presence    PresenceReader
	ice         *webrtc.Config
	emitter     Emitter
	internalKey string
	logger      *slog.Logger
}

// NewRealtimeHandler creates a RealtimeHandler. An empty internalKey disables Emit.
func NewRealtimeHandler(presence PresenceReader, ice *webrtc.Config, emitter Emitter, internalKey string, logger *slog.Logger) *RealtimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{
		presence:    presence,
		ice:         ice,
		emitter:     emitter,
		internalKey: internalKey,
		logger:      logger.With("component", "api"),
	}
}

// OnlineUsersResponse lists connected user ids.
type OnlineUsersResponse struct {
	Success     bool     `json:"success"`
	OnlineUsers []string `json:"onlineUsers"`
}

// ICEServersResponse lists the STUN/TURN servers peers should use.
type ICEServersResponse struct {
	Success    bool               `json:"success"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// EmitRequest asks the gateway to deliver Event with Data to Users.
type EmitRequest struct {
	Event string          `json:"event"`
	Users []string        `json:"users"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Online godoc
// @Summary List online users
// @Tags realtime
// @Security CookieAuth
// @Produce json
// @Success 200 {object} OnlineUsersResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/realtime/online [get]
func (h *RealtimeHandler) Online(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAuth(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, OnlineUsersResponse{
		Success:     true,
		OnlineUsers: h.presence.Online(),
	})
}

// ICEServers godoc
// @Summary Get ICE servers for video calls
// @Tags realtime
// @Security CookieAuth
// @Produce json
// @Success 200 {object} ICEServersResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/realtime/ice-servers [get]
func (h *RealtimeHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAuth(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ICEServersResponse{
		Success:    true,
		ICEServers: h.ice.GetICEServers(),
	})
}

// Emit godoc
// @Summary Deliver an event to connected users
// @Description Used by the REST service to push events such as REFETCH_CHATS.
// @Tags realtime
// @Security InternalKey
// @Accept json
// @Produce json
// @Param body body EmitRequest true "Event to deliver"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/realtime/emit [post]
func (h *RealtimeHandler) Emit(w http.ResponseWriter, r *http.Request) {
	if h.internalKey == "" || h.emitter == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	key := r.Header.Get(InternalKeyHeader)
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.internalKey)) != 1 {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req EmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmitBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	if len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, "users are required")
		return
	}

	var data interface{}
	if len(req.Data) > 0 && string(req.Data) != "null" {
		data = req.Data
	}

	if err := h.emitter.Emit(r.Context(), req.Event, req.Users, data); err != nil {
		h.logger.Error("failed to emit event", "event", req.Event, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to emit event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/duel"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler accepts duel connections. Connections start
// unauthenticated; an AUTHENTICATE message (or a token on the upgrade
// request) binds them to an identity.
type WebSocketHandler struct {
	hub         *hub.Hub
	coordinator *Coordinator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewWebSocketHandler(h *hub.Hub, c *Coordinator, m *metrics.Metrics, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         h,
		coordinator: c,
		metrics:     m,
		logger:      logger.With().Str("component", "ws-handler").Logger(),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, conn, h.hub, h.logger)

	h.hub.Register <- client
	h.metrics.IncConnections()

	h.logger.Info().
		Str("clientId", clientID).
		Str("remoteAddr", r.RemoteAddr).
		Msg("WebSocket connection established")

	go client.WritePump()
	go func() {
		client.ReadPump()
		h.metrics.DecConnections()
	}()

	// A token on the upgrade request authenticates eagerly; everyone else
	// must send AUTHENTICATE first.
	if token := auth.ExtractToken(r); token != "" {
		h.coordinator.Authenticate(client, token)
	}
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func ReadyHandler(h *hub.Hub, registry *duel.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"status":      "ready",
			"connections": h.GetStats(),
			"duels":       registry.GetStats(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	}
}

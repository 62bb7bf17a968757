package hub

import (
	"sync"

	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
	"github.com/rs/zerolog"
)

// MessageHandler receives every inbound frame and every disconnect. The
// gateway implements it; the hub stays a pure connection registry.
type MessageHandler interface {
	HandleMessage(client *Client, data []byte)
	HandleDisconnect(userID string)
}

// Hub tracks all live connections and maps each authenticated identity to
// its one outbound channel. An identity reconnecting replaces its prior
// entry.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]*Client
	Register    chan *Client
	Unregister  chan *Client
	mu          sync.RWMutex
	handler     MessageHandler
	logger      zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]*Client),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Info().
		Str("clientId", client.ID).
		Int("totalClients", len(h.clients)).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	userID := client.UserID()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client)
	close(client.Send)

	bound := userID != "" && h.userClients[userID] == client
	if bound {
		delete(h.userClients, userID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", userID).
		Int("totalClients", total).
		Msg("Client unregistered")

	if bound && h.handler != nil {
		h.handler.HandleDisconnect(userID)
	}
}

// Bind attaches an authenticated identity to its connection, closing any
// prior connection for the same identity.
func (h *Hub) Bind(client *Client, userID string) {
	h.mu.Lock()
	prior := h.userClients[userID]
	h.userClients[userID] = client
	h.mu.Unlock()

	client.SetUserID(userID)

	if prior != nil && prior != client {
		h.logger.Info().Str("userId", userID).Msg("Replacing prior connection")
		prior.SetUserID("")
		prior.Conn.Close()
	}
}

func (h *Hub) ProcessMessage(client *Client, data []byte) {
	if h.handler != nil {
		h.handler.HandleMessage(client, data)
	}
}

func (h *Hub) SendToClient(client *Client, msg *protocol.Message) {
	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	select {
	case client.Send <- data:
	default:
		// The disconnect handler runs on the Run goroutine and can land
		// here; a blocking Unregister send would deadlock the loop.
		h.logger.Warn().Str("clientId", client.ID).Msg("Client send buffer full, disconnecting")
		go func() {
			h.Unregister <- client
		}()
	}
}

// SendToUser delivers a message to an identity's live channel. A
// disconnected identity is skipped silently; the return value says whether
// anything was sent.
func (h *Hub) SendToUser(userID string, msg *protocol.Message) bool {
	h.mu.RLock()
	client := h.userClients[userID]
	h.mu.RUnlock()

	if client == nil {
		return false
	}
	h.SendToClient(client, msg)
	return true
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userClients[userID] != nil
}

func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"totalClients": len(h.clients),
		"totalUsers":   len(h.userClients),
	}
}

package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/config"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/duel"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/matchmaking"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/presence"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// waitPerPosition is the rough matchmaking wait estimate reported on join.
const waitPerPosition = 5 // seconds

// Coordinator routes every inbound action to matchmaking or the owning duel
// session and turns matched pairs into new sessions. It implements
// hub.MessageHandler.
type Coordinator struct {
	hub       *hub.Hub
	queue     *matchmaking.Queue
	registry  *duel.Registry
	validator *auth.JWTValidator
	store     store.Store
	judge     duel.Judge
	events    duel.EventPublisher
	presence  *presence.Manager
	metrics   *metrics.Metrics

	rewards      duel.Rewards
	duelDuration time.Duration

	logger zerolog.Logger
}

func NewCoordinator(
	h *hub.Hub,
	registry *duel.Registry,
	validator *auth.JWTValidator,
	st store.Store,
	judgeClient duel.Judge,
	events duel.EventPublisher,
	p *presence.Manager,
	m *metrics.Metrics,
	cfg *config.AppConfig,
	logger zerolog.Logger,
) *Coordinator {
	c := &Coordinator{
		hub:       h,
		registry:  registry,
		validator: validator,
		store:     st,
		judge:     judgeClient,
		events:    events,
		presence:  p,
		metrics:   m,
		rewards: duel.Rewards{
			WinXP:        cfg.Duel.WinXP,
			ForfeitWinXP: cfg.Duel.ForfeitWinXP,
			LossXP:       cfg.Duel.LossXP,
		},
		duelDuration: cfg.Duel.Duration,
		logger:       logger.With().Str("component", "coordinator").Logger(),
	}
	c.queue = matchmaking.NewQueue(cfg.Duel.ForceMatchSize, c.createDuel, logger)
	h.SetHandler(c)
	return c
}

func (c *Coordinator) HandleMessage(client *hub.Client, data []byte) {
	c.metrics.IncMessagesReceived()

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.logger.Debug().Err(err).Str("clientId", client.ID).Msg("Failed to parse message")
		c.sendError(client, "Invalid message format")
		return
	}

	if msg.Type == protocol.MsgAuthenticate {
		var payload protocol.AuthenticatePayload
		if err := msg.DecodePayload(&payload); err != nil {
			c.sendError(client, "Invalid authenticate payload")
			return
		}
		c.Authenticate(client, payload.Token)
		return
	}

	if !client.Authenticated() {
		c.sendError(client, "Not authenticated")
		return
	}

	switch msg.Type {
	case protocol.MsgJoinQueue:
		c.handleJoinQueue(client, msg)
	case protocol.MsgLeaveQueue:
		c.handleLeaveQueue(client)
	case protocol.MsgSubmitCode:
		c.handleSubmitCode(client, msg)
	case protocol.MsgLeaveDuel:
		c.handleLeaveDuel(client)
	case protocol.MsgChatMessage:
		c.handleChat(client, msg)
	default:
		c.sendError(client, "Unknown message type")
	}
}

// Authenticate validates a credential token and binds the connection to its
// identity. A failure terminates the connection.
func (c *Coordinator) Authenticate(client *hub.Client, token string) {
	claims, err := c.validator.ValidateToken(token)
	if err != nil {
		c.metrics.IncAuthFailures()
		c.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Authentication failed")

		msg, _ := protocol.NewMessage(protocol.MsgAuthError, protocol.AuthErrorPayload{Message: "Invalid token"})
		c.hub.SendToClient(client, msg)
		client.Conn.Close()
		return
	}

	userID := claims.GetUserID()
	c.hub.Bind(client, userID)

	if c.presence != nil {
		if err := c.presence.SetOnline(context.Background(), userID); err != nil {
			c.logger.Error().Err(err).Str("userId", userID).Msg("Failed to set presence")
		}
	}

	msg, _ := protocol.NewMessage(protocol.MsgAuthSuccess, protocol.AuthSuccessPayload{
		UserID:  userID,
		Message: "Connected to Code Duel server",
	})
	c.hub.SendToClient(client, msg)
	c.metrics.IncMessagesSent()

	c.logger.Info().Str("clientId", client.ID).Str("userId", userID).Msg("Client authenticated")
}

func (c *Coordinator) handleJoinQueue(client *hub.Client, msg *protocol.Message) {
	var payload protocol.JoinQueuePayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendError(client, "Invalid join queue payload")
		return
	}
	if payload.Difficulty == "" {
		payload.Difficulty = "beginner"
	}
	if payload.Language == "" {
		payload.Language = "python"
	}

	userID := client.UserID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	profile, err := c.store.GetProfile(ctx, userID)
	cancel()
	if err != nil {
		c.logger.Error().Err(err).Str("userId", userID).Msg("Failed to load profile")
		profile = &store.Profile{Nickname: "Anonymous"}
	}

	position, err := c.queue.Join(&matchmaking.Entry{
		UserID:     userID,
		Difficulty: payload.Difficulty,
		Language:   payload.Language,
		Nickname:   profile.Nickname,
		Avatar:     profile.Avatar,
		JoinedAt:   time.Now(),
	})
	if err != nil {
		if errors.Is(err, matchmaking.ErrAlreadyQueued) {
			c.sendError(client, "Already in queue")
			return
		}
		c.sendError(client, "Failed to join queue")
		return
	}

	c.metrics.SetQueueSize(c.queue.Size())

	// Acknowledge the join before pairing so QUEUE_JOINED always precedes a
	// DUEL_START for the same player.
	joined, _ := protocol.NewMessage(protocol.MsgQueueJoined, protocol.QueueJoinedPayload{
		Position:      position,
		EstimatedWait: position * waitPerPosition,
	})
	c.hub.SendToClient(client, joined)

	c.queue.Match()
}

func (c *Coordinator) handleLeaveQueue(client *hub.Client) {
	c.queue.Leave(client.UserID())
	c.metrics.SetQueueSize(c.queue.Size())

	left, _ := protocol.NewMessage(protocol.MsgQueueLeft, nil)
	c.hub.SendToClient(client, left)
}

func (c *Coordinator) handleSubmitCode(client *hub.Client, msg *protocol.Message) {
	var payload protocol.SubmitCodePayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendError(client, "Invalid submit payload")
		return
	}

	userID := client.UserID()
	session := c.registry.FindByUser(userID)
	if session == nil {
		c.sendError(client, "Not in a duel")
		return
	}

	// The judge call is the dominant suspension point; run it off the read
	// loop so other duels and the queue keep moving. The session re-derives
	// language and hidden tests from its own problem snapshot.
	go func() {
		start := time.Now()
		session.Submit(context.Background(), userID, payload.Code)
		c.metrics.ObserveSubmissionLatency(time.Since(start).Seconds())
	}()
}

func (c *Coordinator) handleLeaveDuel(client *hub.Client) {
	userID := client.UserID()
	session := c.registry.FindByUser(userID)
	if session == nil {
		c.sendError(client, "Not in a duel")
		return
	}

	if err := session.Forfeit(context.Background(), userID); err != nil {
		if errors.Is(err, duel.ErrNotActive) {
			c.sendError(client, "Duel is no longer active")
		}
	}
}

func (c *Coordinator) handleChat(client *hub.Client, msg *protocol.Message) {
	var payload protocol.ChatPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.Message == "" {
		return
	}

	userID := client.UserID()
	if session := c.registry.FindByUser(userID); session != nil {
		session.Chat(userID, payload.Message)
	}
}

// HandleDisconnect runs when a bound connection drops: the identity leaves
// the queue and forfeits any active duel.
func (c *Coordinator) HandleDisconnect(userID string) {
	ctx := context.Background()

	if c.presence != nil {
		if err := c.presence.SetOffline(ctx, userID); err != nil {
			c.logger.Error().Err(err).Str("userId", userID).Msg("Failed to clear presence")
		}
	}

	c.queue.Leave(userID)
	c.metrics.SetQueueSize(c.queue.Size())

	if session := c.registry.FindByUser(userID); session != nil {
		c.logger.Info().Str("userId", userID).Str("duelId", session.ID).Msg("Participant disconnected, forfeiting")
		if err := session.Forfeit(ctx, userID); err != nil && !errors.Is(err, duel.ErrNotActive) {
			c.logger.Error().Err(err).Str("duelId", session.ID).Msg("Forfeit on disconnect failed")
		}
	}
}

// createDuel runs after matchmaking removed both entries from the queue.
// The problem lookup is keyed on the anchor's preferences. When no problem
// exists, both players are told and must re-join.
func (c *Coordinator) createDuel(p1, p2 *matchmaking.Entry) {
	c.metrics.SetQueueSize(c.queue.Size())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	problem, err := c.store.RandomProblem(ctx, p1.Difficulty, p1.Language)
	if err != nil {
		if !errors.Is(err, store.ErrNoProblem) {
			c.logger.Error().Err(err).Msg("Problem lookup failed")
		}
		msg, _ := protocol.NewErrorMessage("No problems available for this difficulty/language")
		c.hub.SendToUser(p1.UserID, msg)
		c.hub.SendToUser(p2.UserID, msg)
		return
	}

	duelID := "duel_" + uuid.New().String()
	session := duel.NewSession(duelID, problem,
		duel.Player{UserID: p1.UserID, Nickname: p1.Nickname, Avatar: p1.Avatar},
		duel.Player{UserID: p2.UserID, Nickname: p2.Nickname, Avatar: p2.Avatar},
		c.duelDuration,
		duel.Deps{
			Judge:    c.judge,
			Store:    c.store,
			Sender:   c.hub,
			Events:   c.events,
			Rewards:  c.rewards,
			OnRetire: c.registry.EvictAfter,
			OnJudged: c.metrics.IncSubmissions,
			OnResolve: func(outcome duel.State) {
				c.metrics.IncDuelsResolved(string(outcome))
				c.metrics.SetActiveDuels(c.registry.ActiveCount())
			},
			Logger: c.logger,
		})

	c.registry.Register(session)
	c.metrics.IncMatches()
	c.metrics.SetActiveDuels(c.registry.ActiveCount())

	session.Start(ctx)
}

func (c *Coordinator) QueueSize() int {
	return c.queue.Size()
}

func (c *Coordinator) sendError(client *hub.Client, message string) {
	msg, _ := protocol.NewErrorMessage(message)
	c.hub.SendToClient(client, msg)
}

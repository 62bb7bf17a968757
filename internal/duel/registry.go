package duel

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry tracks every live session and which duel each participant is in.
// Terminal sessions linger for a grace period so in-flight result messages
// still find their duel.
type Registry struct {
	sessions map[string]*Session
	byUser   map[string]string // userID -> duelID
	grace    time.Duration
	mu       sync.RWMutex
	logger   zerolog.Logger
}

func NewRegistry(grace time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		grace:    grace,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

func (r *Registry) Register(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	for _, p := range session.Participants() {
		r.byUser[p.UserID] = session.ID
	}

	r.logger.Info().Str("duelId", session.ID).Int("activeDuels", len(r.sessions)).Msg("Duel registered")
}

func (r *Registry) Lookup(duelID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[duelID]
}

// FindByUser returns the session the identity currently participates in.
func (r *Registry) FindByUser(userID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	duelID, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	return r.sessions[duelID]
}

// EvictAfter schedules eviction once the grace period elapses.
func (r *Registry) EvictAfter(duelID string) {
	time.AfterFunc(r.grace, func() {
		r.Evict(duelID)
	})
}

func (r *Registry) Evict(duelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[duelID]
	if !ok {
		return
	}
	delete(r.sessions, duelID)
	for _, p := range session.Participants() {
		if r.byUser[p.UserID] == duelID {
			delete(r.byUser, p.UserID)
		}
	}

	r.logger.Info().Str("duelId", duelID).Int("activeDuels", len(r.sessions)).Msg("Duel evicted")
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byState := make(map[State]int)
	for _, s := range r.sessions {
		byState[s.State()]++
	}
	return map[string]interface{}{
		"totalDuels": len(r.sessions),
		"byState":    byState,
	}
}

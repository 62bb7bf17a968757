package duel

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newRegistrySession(id, user1, user2 string) *Session {
	return NewSession(id, testProblem(),
		Player{UserID: user1, Nickname: user1},
		Player{UserID: user2, Nickname: user2},
		15*time.Minute,
		Deps{
			Judge:  &fakeJudge{},
			Store:  newFakeStore(),
			Sender: newFakeSender(),
			Logger: zerolog.Nop(),
		})
}

func TestRegistry_FindByUser(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())
	session := newRegistrySession("duel-1", "p1", "p2")
	r.Register(session)

	if got := r.FindByUser("p1"); got != session {
		t.Fatal("p1 should resolve to the registered session")
	}
	if got := r.FindByUser("p2"); got != session {
		t.Fatal("p2 should resolve to the registered session")
	}
	if got := r.FindByUser("stranger"); got != nil {
		t.Fatal("unknown identity should resolve to nil")
	}
	if got := r.ActiveCount(); got != 1 {
		t.Fatalf("expected 1 active duel, got %d", got)
	}
}

func TestRegistry_Evict(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())
	r.Register(newRegistrySession("duel-1", "p1", "p2"))

	r.Evict("duel-1")

	if got := r.Lookup("duel-1"); got != nil {
		t.Fatal("evicted duel should not be resolvable")
	}
	if got := r.FindByUser("p1"); got != nil {
		t.Fatal("evicted duel should release its participants")
	}

	// Evicting twice is harmless.
	r.Evict("duel-1")
}

func TestRegistry_EvictAfterGrace(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, zerolog.Nop())
	session := newRegistrySession("duel-1", "p1", "p2")
	r.Register(session)

	r.EvictAfter("duel-1")

	if got := r.FindByUser("p1"); got != session {
		t.Fatal("session must stay resolvable during the grace period")
	}

	deadline := time.Now().Add(time.Second)
	for r.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not evicted after the grace period")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_EvictDoesNotUnbindRematchedUser(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())
	r.Register(newRegistrySession("duel-1", "p1", "p2"))
	// p1 got rematched before the old duel's grace eviction ran.
	rematch := newRegistrySession("duel-2", "p1", "p3")
	r.Register(rematch)

	r.Evict("duel-1")

	if got := r.FindByUser("p1"); got != rematch {
		t.Fatal("evicting the old duel must not unbind the rematched identity")
	}
}

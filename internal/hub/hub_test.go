package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
	"github.com/rs/zerolog"
)

// opponentNotifier mimics a disconnect handler that broadcasts to the
// departed user's opponent, the way an active duel does.
type opponentNotifier struct {
	hub    *Hub
	target string
}

func (n *opponentNotifier) HandleMessage(client *Client, data []byte) {}

func (n *opponentNotifier) HandleDisconnect(userID string) {
	msg, _ := protocol.NewErrorMessage("opponent disconnected")
	n.hub.SendToUser(n.target, msg)
}

func TestSendToUser_UnknownIdentity(t *testing.T) {
	h := NewHub(zerolog.Nop())

	msg, _ := protocol.NewErrorMessage("nobody home")
	if h.SendToUser("ghost", msg) {
		t.Fatal("send to an unbound identity must report false")
	}
}

func TestUnregister_FullOpponentBufferDoesNotStallRunLoop(t *testing.T) {
	h := NewHub(zerolog.Nop())
	notifier := &opponentNotifier{hub: h, target: "u1"}
	h.SetHandler(notifier)
	go h.Run()

	c1 := NewClient("c1", nil, h, zerolog.Nop())
	c2 := NewClient("c2", nil, h, zerolog.Nop())
	h.Register <- c1
	h.Register <- c2
	h.Bind(c1, "u1")
	h.Bind(c2, "u2")

	// Stall u1: its send buffer is at capacity when u2 disconnects, so the
	// disconnect broadcast takes the overflow path.
	for i := 0; i < cap(c1.Send); i++ {
		c1.Send <- []byte(fmt.Sprintf("frame %d", i))
	}

	h.Unregister <- c2

	c3 := NewClient("c3", nil, h, zerolog.Nop())
	registered := make(chan struct{})
	go func() {
		h.Register <- c3
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("hub stopped accepting registrations after a disconnect broadcast hit a full buffer")
	}
}

package duel

import (
	"context"
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/events"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
)

type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateForfeited State = "forfeited"
)

var (
	ErrNotParticipant = errors.New("not a participant of this duel")
	ErrNotActive      = errors.New("duel is no longer active")
)

// Player identifies one matched player handed over by matchmaking.
type Player struct {
	UserID   string
	Nickname string
	Avatar   string
}

// Submission is immutable once appended to a participant's history.
type Submission struct {
	Timestamp time.Time
	Status    string
	Runtime   string
	Memory    int
	Passed    bool
	Score     int
}

// Participant is one identity's progress within a duel. Mutated only by the
// owning session, under its lock.
type Participant struct {
	UserID      string
	Nickname    string
	Avatar      string
	Submissions []Submission
	CompletedAt time.Time // zero until all hidden tests pass
	FinalScore  int
}

func (p *Participant) Completed() bool {
	return !p.CompletedAt.IsZero()
}

// Judge produces a verdict for one program against a problem's hidden tests.
type Judge interface {
	Execute(ctx context.Context, code string, problem *store.Problem) (*judge.Verdict, error)
}

// Sender delivers a message to an identity's live channel, reporting whether
// one existed. Disconnected identities are skipped, never an error.
type Sender interface {
	SendToUser(userID string, msg *protocol.Message) bool
}

// EventPublisher fans duel lifecycle events out to downstream services.
type EventPublisher interface {
	DuelStarted(event *events.DuelStartedEvent)
	SubmissionJudged(event *events.SubmissionJudgedEvent)
	DuelEnded(event *events.DuelEndedEvent)
}

// Rewards holds the XP constants, configurable rather than hardcoded.
type Rewards struct {
	WinXP        int
	ForfeitWinXP int
	LossXP       int
}

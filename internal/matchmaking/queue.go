package matchmaking

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrAlreadyQueued = errors.New("already in queue")

// Entry is one waiting player. The queue owns entries exclusively; they
// leave it on match, explicit leave, or disconnect.
type Entry struct {
	UserID     string
	Difficulty string
	Language   string
	Nickname   string
	Avatar     string
	JoinedAt   time.Time
}

// MatchFunc receives both paired players after they have been removed from
// the queue. It runs outside the queue lock.
type MatchFunc func(p1, p2 *Entry)

type Queue struct {
	mu             sync.Mutex
	entries        []*Entry
	forceMatchSize int
	onMatch        MatchFunc
	logger         zerolog.Logger
}

func NewQueue(forceMatchSize int, onMatch MatchFunc, logger zerolog.Logger) *Queue {
	return &Queue{
		forceMatchSize: forceMatchSize,
		onMatch:        onMatch,
		logger:         logger.With().Str("component", "matchmaking").Logger(),
	}
}

// Join appends a player and returns the 1-based queue position at the time
// of joining. It does not pair; the caller acknowledges the join and then
// runs Match, so a player always observes the join before any match.
func (q *Queue) Join(entry *Entry) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.UserID == entry.UserID {
			return 0, ErrAlreadyQueued
		}
	}

	q.entries = append(q.entries, entry)
	position := len(q.entries)

	q.logger.Info().
		Str("userId", entry.UserID).
		Str("difficulty", entry.Difficulty).
		Str("language", entry.Language).
		Int("queueSize", position).
		Msg("Player joined queue")

	return position, nil
}

// Match runs a pairing pass, invoking the match callback for every pair
// outside the queue lock.
func (q *Queue) Match() {
	q.mu.Lock()
	pairs := q.pairLocked()
	q.mu.Unlock()

	for _, pair := range pairs {
		q.onMatch(pair[0], pair[1])
	}
}

// Leave removes the player's entry if present. Idempotent.
func (q *Queue) Leave(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.logger.Info().Str("userId", userID).Int("queueSize", len(q.entries)).Msg("Player left queue")
			return
		}
	}
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// pairLocked runs the pairing pass under the queue lock. The head entry is
// the anchor; the first entry with equal difficulty and language is its
// partner. Without one, a degraded match with the second entry fires only
// once the queue has grown to forceMatchSize.
func (q *Queue) pairLocked() [][2]*Entry {
	var pairs [][2]*Entry

	for len(q.entries) >= 2 {
		anchor := q.entries[0]

		matchIdx := -1
		for i := 1; i < len(q.entries); i++ {
			if q.entries[i].Difficulty == anchor.Difficulty && q.entries[i].Language == anchor.Language {
				matchIdx = i
				break
			}
		}

		if matchIdx == -1 {
			if len(q.entries) < q.forceMatchSize {
				break
			}
			matchIdx = 1
			q.logger.Info().
				Str("anchor", anchor.UserID).
				Int("queueSize", len(q.entries)).
				Msg("Degraded match, pairing head entries despite preference mismatch")
		}

		partner := q.entries[matchIdx]
		q.entries = append(q.entries[:matchIdx], q.entries[matchIdx+1:]...)
		q.entries = q.entries[1:]

		pairs = append(pairs, [2]*Entry{anchor, partner})
	}

	return pairs
}

package matchmaking

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newEntry(userID, difficulty, language string) *Entry {
	return &Entry{
		UserID:     userID,
		Difficulty: difficulty,
		Language:   language,
		Nickname:   userID,
		JoinedAt:   time.Now(),
	}
}

type pairRecorder struct {
	pairs [][2]string
}

func (r *pairRecorder) onMatch(p1, p2 *Entry) {
	r.pairs = append(r.pairs, [2]string{p1.UserID, p2.UserID})
}

func joinAndMatch(t *testing.T, q *Queue, entry *Entry) {
	t.Helper()
	if _, err := q.Join(entry); err != nil {
		t.Fatalf("join %s: %v", entry.UserID, err)
	}
	q.Match()
}

func TestJoin_ReturnsPosition(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	pos, err := q.Join(newEntry("u1", "beginner", "python"))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}
}

func TestJoin_DoesNotPair(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	q.Join(newEntry("u1", "beginner", "python"))
	q.Join(newEntry("u2", "beginner", "python"))

	// Pairing only happens on an explicit Match pass, so the caller can
	// acknowledge a join before its player can be matched.
	if len(rec.pairs) != 0 {
		t.Fatalf("join alone must not pair, got %v", rec.pairs)
	}

	q.Match()
	if len(rec.pairs) != 1 {
		t.Fatalf("expected 1 pair after match pass, got %d", len(rec.pairs))
	}
}

func TestJoin_DuplicateRejected(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	if _, err := q.Join(newEntry("u1", "beginner", "python")); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := q.Join(newEntry("u1", "advanced", "java")); err != ErrAlreadyQueued {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
	if q.Size() != 1 {
		t.Fatalf("duplicate join must leave queue unchanged, size=%d", q.Size())
	}
}

func TestPairing_ExactMatch(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	joinAndMatch(t, q, newEntry("u1", "beginner", "python"))
	joinAndMatch(t, q, newEntry("u2", "beginner", "python"))

	if len(rec.pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(rec.pairs))
	}
	if rec.pairs[0] != [2]string{"u1", "u2"} {
		t.Fatalf("unexpected pair: %v", rec.pairs[0])
	}
	if q.Size() != 0 {
		t.Fatalf("queue should be empty after pairing, size=%d", q.Size())
	}
}

func TestPairing_PrefersExactMatchOverOrder(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	joinAndMatch(t, q, newEntry("u1", "beginner", "python"))
	joinAndMatch(t, q, newEntry("u2", "advanced", "java"))
	joinAndMatch(t, q, newEntry("u3", "beginner", "python"))

	if len(rec.pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(rec.pairs))
	}
	if rec.pairs[0] != [2]string{"u1", "u3"} {
		t.Fatalf("anchor should pair with first exact match, got %v", rec.pairs[0])
	}
	if q.Size() != 1 {
		t.Fatalf("u2 should remain queued, size=%d", q.Size())
	}
}

func TestPairing_NoForcedMatchBelowThreshold(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	joinAndMatch(t, q, newEntry("u1", "beginner", "python"))
	joinAndMatch(t, q, newEntry("u2", "advanced", "java"))
	joinAndMatch(t, q, newEntry("u3", "intermediate", "cpp"))

	if len(rec.pairs) != 0 {
		t.Fatalf("no pairs expected below threshold, got %v", rec.pairs)
	}
	if q.Size() != 3 {
		t.Fatalf("expected 3 waiting, got %d", q.Size())
	}
}

func TestPairing_DegradedMatchAtThreshold(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	joinAndMatch(t, q, newEntry("u1", "beginner", "python"))
	joinAndMatch(t, q, newEntry("u2", "advanced", "java"))
	joinAndMatch(t, q, newEntry("u3", "intermediate", "cpp"))
	joinAndMatch(t, q, newEntry("u4", "expert", "c"))

	// At size 4 the anchor pairs with the second entry despite the
	// preference mismatch.
	if len(rec.pairs) != 1 {
		t.Fatalf("expected 1 degraded pair, got %d", len(rec.pairs))
	}
	if rec.pairs[0] != [2]string{"u1", "u2"} {
		t.Fatalf("unexpected degraded pair: %v", rec.pairs[0])
	}
	if q.Size() != 2 {
		t.Fatalf("expected 2 waiting after degraded pair, got %d", q.Size())
	}
}

func TestLeave_Idempotent(t *testing.T) {
	rec := &pairRecorder{}
	q := NewQueue(4, rec.onMatch, zerolog.Nop())

	q.Join(newEntry("u1", "beginner", "python"))
	q.Leave("u1")
	q.Leave("u1")
	q.Leave("never-joined")

	if q.Size() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Size())
	}
}

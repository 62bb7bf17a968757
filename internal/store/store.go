package store

import (
	"context"
	"errors"
)

var ErrNoProblem = errors.New("no problem available")

type Profile struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Problem is the immutable snapshot a duel is played on. HiddenTests are the
// grading set and must never be serialized into a client payload.
type Problem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Difficulty    string     `json:"difficulty"`
	StarterCode   string     `json:"starter_code"`
	Language      string     `json:"language"`
	TimeLimitMs   int        `json:"time_limit_ms"`
	MemoryLimitMb int        `json:"memory_limit_mb"`
	PublicTests   []TestCase `json:"tests_public"`
	HiddenTests   []TestCase `json:"tests_hidden"`
}

type DuelRecord struct {
	ID           string `json:"id"`
	ProblemID    string `json:"problem_id"`
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	Status       string `json:"status"`
	WinnerID     string `json:"winner_id,omitempty"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	StartedAt    int64  `json:"started_at"`
	EndedAt      int64  `json:"ended_at,omitempty"`
}

// DuelEvent is the audit record written per participant at duel resolution.
type DuelEvent struct {
	DuelID    string `json:"duel_id"`
	Result    string `json:"result"` // won | lost
	XPEarned  int    `json:"xp_earned"`
	Score     int    `json:"score"`
	Timestamp int64  `json:"timestamp"`
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

type ProblemStore interface {
	// RandomProblem returns a random eligible problem, or ErrNoProblem when
	// none exists for the requested difficulty/language.
	RandomProblem(ctx context.Context, difficulty, language string) (*Problem, error)
}

type DuelStore interface {
	SaveDuel(ctx context.Context, record *DuelRecord) error
}

type EventStore interface {
	RecordEvent(ctx context.Context, userID string, event *DuelEvent) error
}

type GamificationStore interface {
	// AwardXP adds xp to the user's running total and recomputes the level.
	AwardXP(ctx context.Context, userID string, xp int) (points int64, level int, err error)
}

// Store bundles every collaborator a duel touches.
type Store interface {
	ProfileStore
	ProblemStore
	DuelStore
	EventStore
	GamificationStore
}

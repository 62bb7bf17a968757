package duel

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
	"github.com/rs/zerolog"
)

type fakeSender struct {
	mu      sync.Mutex
	msgs    map[string][]*protocol.Message
	offline map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		msgs:    make(map[string][]*protocol.Message),
		offline: make(map[string]bool),
	}
}

func (f *fakeSender) SendToUser(userID string, msg *protocol.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[userID] {
		return false
	}
	f.msgs[userID] = append(f.msgs[userID], msg)
	return true
}

func (f *fakeSender) ofType(userID string, msgType protocol.MessageType) []*protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*protocol.Message
	for _, m := range f.msgs[userID] {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeStore struct {
	mu     sync.Mutex
	saved  []*store.DuelRecord
	xp     map[string]int
	events map[string][]*store.DuelEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		xp:     make(map[string]int),
		events: make(map[string][]*store.DuelEvent),
	}
}

func (f *fakeStore) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	return &store.Profile{Nickname: userID}, nil
}

func (f *fakeStore) RandomProblem(ctx context.Context, difficulty, language string) (*store.Problem, error) {
	return nil, store.ErrNoProblem
}

func (f *fakeStore) SaveDuel(ctx context.Context, record *store.DuelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeStore) RecordEvent(ctx context.Context, userID string, event *store.DuelEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[userID] = append(f.events[userID], event)
	return nil
}

func (f *fakeStore) AwardXP(ctx context.Context, userID string, xp int) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.xp[userID] += xp
	return int64(f.xp[userID]), store.LevelForPoints(int64(f.xp[userID])), nil
}

func (f *fakeStore) awarded(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.xp[userID]
}

type fakeJudge struct {
	mu       sync.Mutex
	verdicts []*judge.Verdict
	errs     []error
	gate     chan struct{}
}

func (f *fakeJudge) Execute(ctx context.Context, code string, problem *store.Problem) (*judge.Verdict, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	v := f.verdicts[0]
	if len(f.verdicts) > 1 {
		f.verdicts = f.verdicts[1:]
	}
	return v, nil
}

func passVerdict() *judge.Verdict {
	return &judge.Verdict{Status: "Accepted", Passed: true, Score: 100}
}

func testProblem() *store.Problem {
	return &store.Problem{
		ID:          "prob-1",
		Title:       "Two Sum",
		Description: "Find two numbers that add up to a target.",
		Difficulty:  "beginner",
		Language:    "python",
		TimeLimitMs: 2000,
		PublicTests: []store.TestCase{{Input: "1 2", Output: "3"}},
		HiddenTests: []store.TestCase{
			{Input: "secret-in-1", Output: "secret-out-1"},
			{Input: "secret-in-2", Output: "secret-out-2"},
		},
	}
}

type sessionEnv struct {
	session  *Session
	sender   *fakeSender
	store    *fakeStore
	judge    *fakeJudge
	retired  []string
	judged   []string
	resolved []State
	mu       sync.Mutex
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	env := &sessionEnv{
		sender: newFakeSender(),
		store:  newFakeStore(),
		judge:  &fakeJudge{},
	}
	env.session = NewSession("duel-1", testProblem(),
		Player{UserID: "p1", Nickname: "Alice"},
		Player{UserID: "p2", Nickname: "Bob"},
		15*time.Minute,
		Deps{
			Judge:   env.judge,
			Store:   env.store,
			Sender:  env.sender,
			Rewards: Rewards{WinXP: 200, ForfeitWinXP: 150, LossXP: 50},
			OnRetire: func(id string) {
				env.mu.Lock()
				env.retired = append(env.retired, id)
				env.mu.Unlock()
			},
			OnJudged: func(status string) {
				env.mu.Lock()
				env.judged = append(env.judged, status)
				env.mu.Unlock()
			},
			OnResolve: func(outcome State) {
				env.mu.Lock()
				env.resolved = append(env.resolved, outcome)
				env.mu.Unlock()
			},
			Logger: zerolog.Nop(),
		})
	return env
}

func TestStart_WithholdsHiddenTests(t *testing.T) {
	env := newSessionEnv(t)
	env.session.Start(context.Background())

	starts := env.sender.ofType("p1", protocol.MsgDuelStart)
	if len(starts) != 1 {
		t.Fatalf("expected 1 DUEL_START for p1, got %d", len(starts))
	}
	raw := string(starts[0].Payload)
	if strings.Contains(raw, "secret-in-1") || strings.Contains(raw, "secret-out-1") {
		t.Fatalf("hidden tests leaked into duel start payload: %s", raw)
	}

	var payload protocol.DuelStartPayload
	if err := starts[0].DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Problem.ID != "prob-1" {
		t.Fatalf("unexpected problem id %q", payload.Problem.ID)
	}
	if len(payload.Problem.PublicTests) != 1 {
		t.Fatalf("expected 1 public test, got %d", len(payload.Problem.PublicTests))
	}
	if payload.Opponent.Nickname != "Bob" {
		t.Fatalf("p1 should see Bob as opponent, got %q", payload.Opponent.Nickname)
	}
}

func TestSubmit_PartialScore(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.verdicts = []*judge.Verdict{{
		Status: "Wrong Answer",
		Passed: false,
		Score:  40,
		TestResults: []judge.TestResult{
			{Passed: true}, {Passed: true}, {Passed: false}, {Passed: false}, {Passed: false},
		},
	}}

	env.session.Submit(context.Background(), "p1", "print(1)")

	results := env.sender.ofType("p1", protocol.MsgSubmissionResult)
	if len(results) != 1 {
		t.Fatalf("expected 1 SUBMISSION_RESULT, got %d", len(results))
	}
	var payload protocol.SubmissionResultPayload
	if err := results[0].DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Score != 40 || payload.Passed {
		t.Fatalf("expected score=40 passed=false, got score=%d passed=%v", payload.Score, payload.Passed)
	}

	participants := env.session.Participants()
	if participants[0].Completed() {
		t.Fatal("partial score must not set completedAt")
	}
	if len(participants[0].Submissions) != 1 {
		t.Fatalf("expected 1 submission recorded, got %d", len(participants[0].Submissions))
	}

	if got := env.sender.ofType("p2", protocol.MsgOpponentCompleted); len(got) != 0 {
		t.Fatal("opponent must not be told about a failed submission")
	}
	if got := env.sender.ofType("p2", protocol.MsgDuelState); len(got) != 1 {
		t.Fatalf("expected state broadcast to opponent, got %d", len(got))
	}
}

func TestSubmit_FirstCompletionNotifiesOpponent(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "p1", "solution")

	if env.session.State() != StateActive {
		t.Fatalf("duel should stay active with one side done, state=%s", env.session.State())
	}
	if got := env.sender.ofType("p2", protocol.MsgOpponentCompleted); len(got) != 1 {
		t.Fatalf("expected OPPONENT_COMPLETED for p2, got %d", len(got))
	}
	if got := env.sender.ofType("p1", protocol.MsgOpponentCompleted); len(got) != 0 {
		t.Fatal("completion notice must not echo to the finisher")
	}
}

func TestSubmit_BothCompleteResolvesDuel(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "p1", "solution")
	time.Sleep(5 * time.Millisecond)
	env.session.Submit(context.Background(), "p2", "solution")

	if env.session.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", env.session.State())
	}
	if env.session.Winner() != "p1" {
		t.Fatalf("earlier completion should win, winner=%s", env.session.Winner())
	}
	if got := env.store.awarded("p1"); got != 200 {
		t.Fatalf("winner XP=200 expected, got %d", got)
	}
	if got := env.store.awarded("p2"); got != 50 {
		t.Fatalf("loser XP=50 expected, got %d", got)
	}
	for _, userID := range []string{"p1", "p2"} {
		if got := env.sender.ofType(userID, protocol.MsgDuelEnd); len(got) != 1 {
			t.Fatalf("expected DUEL_END for %s, got %d", userID, len(got))
		}
	}

	env.mu.Lock()
	retired := len(env.retired)
	judged := len(env.judged)
	resolved := append([]State(nil), env.resolved...)
	env.mu.Unlock()
	if retired != 1 {
		t.Fatalf("session should retire exactly once, got %d", retired)
	}
	if judged != 2 {
		t.Fatalf("both verdicts should report through the judged hook, got %d", judged)
	}
	if len(resolved) != 1 || resolved[0] != StateCompleted {
		t.Fatalf("expected one completed resolution, got %v", resolved)
	}
}

func TestTimeout_ResolvesWithCompletionRule(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "p1", "solution")
	env.session.Timeout()

	if env.session.State() != StateCompleted {
		t.Fatalf("expected completed after timeout, got %s", env.session.State())
	}
	if env.session.Winner() != "p1" {
		t.Fatalf("sole finisher should win, winner=%s", env.session.Winner())
	}
	if got := env.store.awarded("p1"); got != 200 {
		t.Fatalf("winner XP=200 expected, got %d", got)
	}
	if got := env.store.awarded("p2"); got != 50 {
		t.Fatalf("loser XP=50 expected, got %d", got)
	}

	// Re-resolving a terminal duel is a no-op.
	env.session.Timeout()
	if got := env.store.awarded("p1"); got != 200 {
		t.Fatalf("second timeout must not re-award XP, got %d", got)
	}
	if got := env.sender.ofType("p1", protocol.MsgDuelEnd); len(got) != 1 {
		t.Fatalf("DUEL_END must be sent exactly once, got %d", len(got))
	}
	env.mu.Lock()
	resolved := append([]State(nil), env.resolved...)
	env.mu.Unlock()
	if len(resolved) != 1 {
		t.Fatalf("resolution hook must fire exactly once, got %v", resolved)
	}
}

func TestForfeit_AwardsOpponent(t *testing.T) {
	env := newSessionEnv(t)

	if err := env.session.Forfeit(context.Background(), "p1"); err != nil {
		t.Fatalf("forfeit: %v", err)
	}

	if env.session.State() != StateForfeited {
		t.Fatalf("expected forfeited, got %s", env.session.State())
	}
	if env.session.Winner() != "p2" {
		t.Fatalf("opponent should win on forfeit, winner=%s", env.session.Winner())
	}
	if got := env.store.awarded("p2"); got != 150 {
		t.Fatalf("forfeit-win XP=150 expected, got %d", got)
	}
	if got := env.store.awarded("p1"); got != 0 {
		t.Fatalf("forfeiting side earns nothing, got %d", got)
	}
	if got := env.sender.ofType("p2", protocol.MsgDuelForfeited); len(got) != 1 {
		t.Fatalf("expected DUEL_FORFEITED for p2, got %d", len(got))
	}
	if len(env.store.events["p1"]) != 1 || len(env.store.events["p2"]) != 1 {
		t.Fatal("both participants get an audit event on forfeit")
	}

	if err := env.session.Forfeit(context.Background(), "p2"); err != ErrNotActive {
		t.Fatalf("forfeit on terminal duel should fail with ErrNotActive, got %v", err)
	}
	env.mu.Lock()
	resolved := append([]State(nil), env.resolved...)
	env.mu.Unlock()
	if len(resolved) != 1 || resolved[0] != StateForfeited {
		t.Fatalf("expected one forfeited resolution, got %v", resolved)
	}
}

func TestSubmit_StaleVerdictDiscarded(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.gate = make(chan struct{})
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	done := make(chan struct{})
	go func() {
		env.session.Submit(context.Background(), "p1", "slow solution")
		close(done)
	}()

	// Forfeit while the judge call is still in flight.
	time.Sleep(5 * time.Millisecond)
	if err := env.session.Forfeit(context.Background(), "p1"); err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	close(env.judge.gate)
	<-done

	participants := env.session.Participants()
	if len(participants[0].Submissions) != 0 {
		t.Fatal("verdict arriving after terminal state must be discarded")
	}
	if env.session.Winner() != "p2" {
		t.Fatalf("forfeit outcome must stand, winner=%s", env.session.Winner())
	}
	if got := env.sender.ofType("p1", protocol.MsgSubmissionResult); len(got) != 0 {
		t.Fatal("no SUBMISSION_RESULT for a discarded verdict")
	}
	env.mu.Lock()
	judged := len(env.judged)
	env.mu.Unlock()
	if judged != 0 {
		t.Fatal("discarded verdict must not report through the judged hook")
	}
}

func TestSubmit_JudgeErrorIsRetryable(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.errs = []error{judge.ErrUnavailable}
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "p1", "solution")

	if got := env.sender.ofType("p1", protocol.MsgSubmissionError); len(got) != 1 {
		t.Fatalf("expected SUBMISSION_ERROR, got %d", len(got))
	}
	if env.session.State() != StateActive {
		t.Fatalf("judge failure must not end the duel, state=%s", env.session.State())
	}
	participants := env.session.Participants()
	if len(participants[0].Submissions) != 0 {
		t.Fatal("failed judge call must not record a submission")
	}

	// Resubmission succeeds.
	env.session.Submit(context.Background(), "p1", "solution")
	if got := env.sender.ofType("p1", protocol.MsgSubmissionResult); len(got) != 1 {
		t.Fatalf("expected successful resubmission result, got %d", len(got))
	}
}

func TestSubmit_NonParticipantRejected(t *testing.T) {
	env := newSessionEnv(t)
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "intruder", "code")

	if got := env.sender.ofType("intruder", protocol.MsgError); len(got) != 1 {
		t.Fatalf("expected ERROR for non-participant, got %d", len(got))
	}
	participants := env.session.Participants()
	if len(participants[0].Submissions)+len(participants[1].Submissions) != 0 {
		t.Fatal("non-participant submission must not mutate state")
	}
}

func TestChat_ExcludesSender(t *testing.T) {
	env := newSessionEnv(t)

	env.session.Chat("p1", "good luck")

	if got := env.sender.ofType("p2", protocol.MsgChatMessage); len(got) != 1 {
		t.Fatalf("expected chat for p2, got %d", len(got))
	}
	if got := env.sender.ofType("p1", protocol.MsgChatMessage); len(got) != 0 {
		t.Fatal("chat must not echo to the sender")
	}

	var payload protocol.ChatBroadcastPayload
	if err := env.sender.ofType("p2", protocol.MsgChatMessage)[0].DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Nickname != "Alice" || payload.Message != "good luck" {
		t.Fatalf("unexpected chat payload: %+v", payload)
	}
}

func TestBroadcast_SkipsDisconnected(t *testing.T) {
	env := newSessionEnv(t)
	env.sender.offline["p2"] = true
	env.judge.verdicts = []*judge.Verdict{passVerdict()}

	env.session.Submit(context.Background(), "p1", "solution")
	env.session.Timeout()

	if env.session.State() != StateCompleted {
		t.Fatalf("broadcast to a disconnected participant must not break resolution, state=%s", env.session.State())
	}
	if got := env.sender.ofType("p1", protocol.MsgDuelEnd); len(got) != 1 {
		t.Fatalf("connected participant still gets DUEL_END, got %d", len(got))
	}
}

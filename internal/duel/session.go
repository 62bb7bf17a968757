package duel

import (
	"context"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/events"
	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/protocol"
	"github.com/rs/zerolog"
)

// Deps are the collaborators a session needs. Events may be nil when the
// Kafka producer is disabled; the hooks are optional.
type Deps struct {
	Judge     Judge
	Store     store.Store
	Sender    Sender
	Events    EventPublisher
	Rewards   Rewards
	OnRetire  func(duelID string)
	OnJudged  func(status string)
	OnResolve func(outcome State)
	Logger    zerolog.Logger
}

// Session is the state machine for one 1v1 contest. All state mutation is
// serialized on its mutex; the judge call happens outside it so a slow
// verdict never blocks a forfeit or the ceiling timer.
type Session struct {
	ID        string
	Problem   *store.Problem
	StartedAt time.Time
	Duration  time.Duration

	mu           sync.Mutex
	participants [2]*Participant
	state        State
	endedAt      time.Time
	winner       string
	timer        *time.Timer

	deps   Deps
	logger zerolog.Logger
}

func NewSession(id string, problem *store.Problem, p1, p2 Player, duration time.Duration, deps Deps) *Session {
	return &Session{
		ID:        id,
		Problem:   problem,
		StartedAt: time.Now(),
		Duration:  duration,
		participants: [2]*Participant{
			{UserID: p1.UserID, Nickname: p1.Nickname, Avatar: p1.Avatar},
			{UserID: p2.UserID, Nickname: p2.Nickname, Avatar: p2.Avatar},
		},
		state:  StateActive,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "duel").Str("duelId", id).Logger(),
	}
}

// Start persists the duel record, notifies both participants, and arms the
// ceiling timer. The start payload carries public tests only; hidden tests
// are grading answers and stay server-side.
func (s *Session) Start(ctx context.Context) {
	record := &store.DuelRecord{
		ID:        s.ID,
		ProblemID: s.Problem.ID,
		Player1ID: s.participants[0].UserID,
		Player2ID: s.participants[1].UserID,
		Status:    string(StateActive),
		StartedAt: s.StartedAt.UnixMilli(),
	}
	if err := s.deps.Store.SaveDuel(ctx, record); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist duel record")
	}

	publicTests := make([]protocol.TestView, 0, len(s.Problem.PublicTests))
	for _, t := range s.Problem.PublicTests {
		publicTests = append(publicTests, protocol.TestView{Input: t.Input, Output: t.Output})
	}
	problemView := protocol.ProblemView{
		ID:          s.Problem.ID,
		Title:       s.Problem.Title,
		Description: s.Problem.Description,
		Difficulty:  s.Problem.Difficulty,
		StarterCode: s.Problem.StarterCode,
		Language:    s.Problem.Language,
		PublicTests: publicTests,
	}

	for i, p := range s.participants {
		opponent := s.participants[1-i]
		msg, err := protocol.NewMessage(protocol.MsgDuelStart, protocol.DuelStartPayload{
			DuelID:    s.ID,
			Problem:   problemView,
			Opponent:  protocol.OpponentView{Nickname: opponent.Nickname, Avatar: opponent.Avatar},
			TimeLimit: s.Duration.Milliseconds(),
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to build duel start message")
			continue
		}
		s.deps.Sender.SendToUser(p.UserID, msg)
	}

	s.mu.Lock()
	s.timer = time.AfterFunc(s.Duration, s.Timeout)
	s.mu.Unlock()

	if s.deps.Events != nil {
		s.deps.Events.DuelStarted(&events.DuelStartedEvent{
			DuelID:     s.ID,
			ProblemID:  s.Problem.ID,
			Player1ID:  s.participants[0].UserID,
			Player2ID:  s.participants[1].UserID,
			Difficulty: s.Problem.Difficulty,
			Language:   s.Problem.Language,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	s.logger.Info().
		Str("problemId", s.Problem.ID).
		Str("player1", s.participants[0].UserID).
		Str("player2", s.participants[1].UserID).
		Msg("Duel started")
}

// Submit judges a participant's code. The judged language and hidden tests
// come from the session's problem snapshot, never from the client message. A
// verdict arriving after the session went terminal is discarded.
func (s *Session) Submit(ctx context.Context, userID, code string) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		s.sendError(userID, "Duel is no longer active")
		return
	}
	if me, _ := s.findLocked(userID); me == nil {
		s.mu.Unlock()
		s.sendError(userID, "Not a participant of this duel")
		return
	}
	problem := s.Problem
	s.mu.Unlock()

	verdict, err := s.deps.Judge.Execute(ctx, code, problem)
	if err != nil {
		s.logger.Error().Err(err).Str("userId", userID).Msg("Code execution failed")
		msg, _ := protocol.NewMessage(protocol.MsgSubmissionError, protocol.SubmissionErrorPayload{
			Message: "Failed to execute code",
			Details: err.Error(),
		})
		s.deps.Sender.SendToUser(userID, msg)
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		s.logger.Debug().Str("userId", userID).Msg("Discarding verdict for terminal duel")
		return
	}

	me, opponent := s.findLocked(userID)
	if me == nil {
		s.mu.Unlock()
		return
	}

	me.Submissions = append(me.Submissions, Submission{
		Timestamp: time.Now(),
		Status:    verdict.Status,
		Runtime:   verdict.Time,
		Memory:    verdict.Memory,
		Passed:    verdict.Passed,
		Score:     verdict.Score,
	})
	if verdict.Score > me.FinalScore {
		me.FinalScore = verdict.Score
	}

	completedNow := false
	bothComplete := false
	var completedIn time.Duration
	if verdict.Passed && !me.Completed() {
		me.CompletedAt = time.Now()
		completedIn = me.CompletedAt.Sub(s.StartedAt)
		completedNow = true
		bothComplete = opponent.Completed()
	}
	statePayload := s.statePayloadLocked()
	s.mu.Unlock()

	resultMsg, _ := protocol.NewMessage(protocol.MsgSubmissionResult, verdictPayload(verdict))
	s.deps.Sender.SendToUser(userID, resultMsg)

	if s.deps.OnJudged != nil {
		s.deps.OnJudged(verdict.Status)
	}

	if s.deps.Events != nil {
		passedCount := 0
		for _, r := range verdict.TestResults {
			if r.Passed {
				passedCount++
			}
		}
		s.deps.Events.SubmissionJudged(&events.SubmissionJudgedEvent{
			DuelID:          s.ID,
			UserID:          userID,
			ProblemID:       problem.ID,
			Verdict:         verdict.Status,
			Score:           verdict.Score,
			Passed:          verdict.Passed,
			TestCasesPassed: passedCount,
			TestCasesTotal:  len(verdict.TestResults),
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		})
	}

	stateMsg, _ := protocol.NewMessage(protocol.MsgDuelState, statePayload)
	s.broadcast(stateMsg, "")

	switch {
	case bothComplete:
		s.complete(ctx)
	case completedNow:
		notice, _ := protocol.NewMessage(protocol.MsgOpponentCompleted, protocol.OpponentCompletedPayload{
			UserID:   me.UserID,
			Nickname: me.Nickname,
			Time:     completedIn.Milliseconds(),
		})
		s.broadcast(notice, me.UserID)
	}
}

// Forfeit ends the duel in favor of the other participant. Disconnects route
// here too.
func (s *Session) Forfeit(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	me, opponent := s.findLocked(userID)
	if me == nil {
		s.mu.Unlock()
		return ErrNotParticipant
	}

	s.state = StateForfeited
	s.endedAt = time.Now()
	s.winner = opponent.UserID
	if s.timer != nil {
		s.timer.Stop()
	}
	p1, p2 := s.participants[0], s.participants[1]
	s.mu.Unlock()

	s.logger.Info().Str("forfeitedBy", userID).Str("winner", opponent.UserID).Msg("Duel forfeited")

	s.persistResult(ctx, string(StateForfeited), p1, p2)
	s.award(ctx, opponent, "won", s.deps.Rewards.ForfeitWinXP)
	s.recordEvent(ctx, me, "lost", 0)

	msg, _ := protocol.NewMessage(protocol.MsgDuelForfeited, protocol.DuelForfeitedPayload{
		ForfeitedBy: userID,
		Winner:      opponent.UserID,
	})
	s.broadcast(msg, "")

	s.publishEnded(string(StateForfeited), p1, p2)
	if s.deps.OnResolve != nil {
		s.deps.OnResolve(StateForfeited)
	}
	s.retire()
	return nil
}

// Timeout fires when the ceiling timer expires. A duel that already reached
// a terminal state ignores it.
func (s *Session) Timeout() {
	s.logger.Info().Msg("Duel ceiling timer fired")
	s.complete(context.Background())
}

// complete performs the single authoritative resolution. The terminal-state
// check under the lock makes it a no-op on every path after the first.
func (s *Session) complete(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.state = StateCompleted
	s.endedAt = time.Now()
	s.winner = DetermineWinner(s.participants[0], s.participants[1])
	if s.timer != nil {
		s.timer.Stop()
	}
	p1, p2 := s.participants[0], s.participants[1]
	winner := s.winner
	s.mu.Unlock()

	s.logger.Info().Str("winner", winner).Msg("Duel completed")

	s.persistResult(ctx, string(StateCompleted), p1, p2)

	results := make(map[string]protocol.DuelResult, 2)
	for i, p := range []*Participant{p1, p2} {
		xp := s.deps.Rewards.LossXP
		result := "lost"
		if p.UserID == winner {
			xp = s.deps.Rewards.WinXP
			result = "won"
		}
		s.award(ctx, p, result, xp)

		var completedAt int64
		if p.Completed() {
			completedAt = p.CompletedAt.UnixMilli()
		}
		key := "player1"
		if i == 1 {
			key = "player2"
		}
		results[key] = protocol.DuelResult{
			UserID:      p.UserID,
			Nickname:    p.Nickname,
			Score:       p.FinalScore,
			CompletedAt: completedAt,
			XPEarned:    xp,
		}
	}

	msg, _ := protocol.NewMessage(protocol.MsgDuelEnd, protocol.DuelEndPayload{
		Winner:  winner,
		Results: results,
	})
	s.broadcast(msg, "")

	s.publishEnded(string(StateCompleted), p1, p2)
	if s.deps.OnResolve != nil {
		s.deps.OnResolve(StateCompleted)
	}
	s.retire()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner
}

func (s *Session) Participants() [2]*Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants
}

func (s *Session) HasParticipant(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, _ := s.findLocked(userID)
	return me != nil
}

// Chat relays a participant's message to the other side only; the sender's
// own echo is a client concern.
func (s *Session) Chat(userID, text string) {
	s.mu.Lock()
	me, _ := s.findLocked(userID)
	s.mu.Unlock()
	if me == nil {
		return
	}

	msg, _ := protocol.NewMessage(protocol.MsgChatMessage, protocol.ChatBroadcastPayload{
		UserID:    userID,
		Nickname:  me.Nickname,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	})
	s.broadcast(msg, userID)
}

func (s *Session) BroadcastState() {
	s.mu.Lock()
	payload := s.statePayloadLocked()
	s.mu.Unlock()

	msg, _ := protocol.NewMessage(protocol.MsgDuelState, payload)
	s.broadcast(msg, "")
}

func (s *Session) findLocked(userID string) (me, opponent *Participant) {
	switch userID {
	case s.participants[0].UserID:
		return s.participants[0], s.participants[1]
	case s.participants[1].UserID:
		return s.participants[1], s.participants[0]
	}
	return nil, nil
}

func (s *Session) statePayloadLocked() protocol.DuelStatePayload {
	states := make([]protocol.ParticipantState, 0, 2)
	for _, p := range s.participants {
		states = append(states, protocol.ParticipantState{
			UserID:          p.UserID,
			Nickname:        p.Nickname,
			SubmissionCount: len(p.Submissions),
			Completed:       p.Completed(),
			Score:           p.FinalScore,
		})
	}

	remaining := s.Duration - time.Since(s.StartedAt)
	if remaining < 0 {
		remaining = 0
	}
	return protocol.DuelStatePayload{
		Participants:  states,
		TimeRemaining: remaining.Milliseconds(),
	}
}

// broadcast sends to every participant except the excluded identity,
// silently skipping anyone without a live channel.
func (s *Session) broadcast(msg *protocol.Message, excludeUserID string) {
	for _, p := range s.participants {
		if p.UserID == excludeUserID {
			continue
		}
		s.deps.Sender.SendToUser(p.UserID, msg)
	}
}

func (s *Session) sendError(userID, message string) {
	msg, _ := protocol.NewErrorMessage(message)
	s.deps.Sender.SendToUser(userID, msg)
}

// persistResult writes the terminal duel record. Store failures are logged
// and never block result delivery; the in-memory outcome is authoritative
// for the live session.
func (s *Session) persistResult(ctx context.Context, status string, p1, p2 *Participant) {
	record := &store.DuelRecord{
		ID:           s.ID,
		ProblemID:    s.Problem.ID,
		Player1ID:    p1.UserID,
		Player2ID:    p2.UserID,
		Status:       status,
		WinnerID:     s.winner,
		Player1Score: p1.FinalScore,
		Player2Score: p2.FinalScore,
		StartedAt:    s.StartedAt.UnixMilli(),
		EndedAt:      s.endedAt.UnixMilli(),
	}
	if err := s.deps.Store.SaveDuel(ctx, record); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist duel result")
	}
}

func (s *Session) award(ctx context.Context, p *Participant, result string, xp int) {
	if xp > 0 {
		if _, _, err := s.deps.Store.AwardXP(ctx, p.UserID, xp); err != nil {
			s.logger.Error().Err(err).Str("userId", p.UserID).Msg("Failed to award XP")
		}
	}
	s.recordEvent(ctx, p, result, xp)
}

func (s *Session) recordEvent(ctx context.Context, p *Participant, result string, xp int) {
	event := &store.DuelEvent{
		DuelID:    s.ID,
		Result:    result,
		XPEarned:  xp,
		Score:     p.FinalScore,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.deps.Store.RecordEvent(ctx, p.UserID, event); err != nil {
		s.logger.Error().Err(err).Str("userId", p.UserID).Msg("Failed to record duel event")
	}
}

func (s *Session) publishEnded(status string, p1, p2 *Participant) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.DuelEnded(&events.DuelEndedEvent{
		DuelID:       s.ID,
		WinnerID:     s.winner,
		Status:       status,
		Player1Score: p1.FinalScore,
		Player2Score: p2.FinalScore,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Session) retire() {
	if s.deps.OnRetire != nil {
		s.deps.OnRetire(s.ID)
	}
}

func verdictPayload(v *judge.Verdict) protocol.SubmissionResultPayload {
	results := make([]protocol.TestResult, 0, len(v.TestResults))
	for _, r := range v.TestResults {
		results = append(results, protocol.TestResult{
			Input:          r.Input,
			ExpectedOutput: r.ExpectedOutput,
			ActualOutput:   r.ActualOutput,
			Passed:         r.Passed,
			Status:         r.Status,
			Error:          r.Error,
		})
	}
	return protocol.SubmissionResultPayload{
		Status:      v.Status,
		Passed:      v.Passed,
		Score:       v.Score,
		Runtime:     v.Time,
		Memory:      v.Memory,
		TestResults: results,
		Stdout:      v.Stdout,
		Stderr:      v.Stderr,
	}
}

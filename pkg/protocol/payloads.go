package protocol

// Client -> server payloads.

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type JoinQueuePayload struct {
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

type SubmitCodePayload struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

// Server -> client payloads.

type AuthSuccessPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type AuthErrorPayload struct {
	Message string `json:"message"`
}

type QueueJoinedPayload struct {
	Position      int `json:"position"`
	EstimatedWait int `json:"estimatedWait"` // seconds
}

// ProblemView is the client-facing slice of a problem. Hidden tests are
// grading answers and never leave the server.
type ProblemView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	StarterCode string     `json:"starterCode"`
	Language    string     `json:"language"`
	PublicTests []TestView `json:"publicTests"`
}

type TestView struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type OpponentView struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

type DuelStartPayload struct {
	DuelID    string       `json:"duelId"`
	Problem   ProblemView  `json:"problem"`
	Opponent  OpponentView `json:"opponent"`
	TimeLimit int64        `json:"timeLimit"` // milliseconds
}

type ParticipantState struct {
	UserID          string `json:"userId"`
	Nickname        string `json:"nickname"`
	SubmissionCount int    `json:"submissionCount"`
	Completed       bool   `json:"completed"`
	Score           int    `json:"score"`
}

type DuelStatePayload struct {
	Participants  []ParticipantState `json:"participants"`
	TimeRemaining int64              `json:"timeRemaining"` // milliseconds
}

type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
	ActualOutput   string `json:"actualOutput,omitempty"`
	Passed         bool   `json:"passed"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
}

type SubmissionResultPayload struct {
	Status      string       `json:"status"`
	Passed      bool         `json:"passed"`
	Score       int          `json:"score"`
	Runtime     string       `json:"runtime,omitempty"`
	Memory      int          `json:"memory,omitempty"`
	TestResults []TestResult `json:"testResults"`
	Stdout      string       `json:"stdout,omitempty"`
	Stderr      string       `json:"stderr,omitempty"`
}

type SubmissionErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type OpponentCompletedPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Time     int64  `json:"time"` // milliseconds since duel start
}

type DuelResult struct {
	UserID      string `json:"userId"`
	Nickname    string `json:"nickname"`
	Score       int    `json:"score"`
	CompletedAt int64  `json:"completedAt,omitempty"` // unix millis, 0 when never completed
	XPEarned    int    `json:"xpEarned"`
}

type DuelEndPayload struct {
	Winner  string                `json:"winner"`
	Results map[string]DuelResult `json:"results"` // "player1" / "player2"
}

type DuelForfeitedPayload struct {
	ForfeitedBy string `json:"forfeitedBy"`
	Winner      string `json:"winner"`
}

type ChatBroadcastPayload struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

package events

type DuelStartedEvent struct {
	DuelID     string `json:"duelId"`
	ProblemID  string `json:"problemId"`
	Player1ID  string `json:"player1Id"`
	Player2ID  string `json:"player2Id"`
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
	Timestamp  string `json:"timestamp"`
}

type SubmissionJudgedEvent struct {
	DuelID          string `json:"duelId"`
	UserID          string `json:"userId"`
	ProblemID       string `json:"problemId"`
	Verdict         string `json:"verdict"`
	Score           int    `json:"score"`
	Passed          bool   `json:"passed"`
	TestCasesPassed int    `json:"testCasesPassed"`
	TestCasesTotal  int    `json:"testCasesTotal"`
	Timestamp       string `json:"timestamp"`
}

type DuelEndedEvent struct {
	DuelID       string `json:"duelId"`
	WinnerID     string `json:"winnerId"`
	Status       string `json:"status"` // completed | forfeited
	Player1Score int    `json:"player1Score"`
	Player2Score int    `json:"player2Score"`
	Timestamp    string `json:"timestamp"`
}

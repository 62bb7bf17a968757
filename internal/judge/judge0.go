package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/internal/store"
	"github.com/rs/zerolog"
)

// ErrUnavailable means the judging service could not produce a verdict at
// all. It is retryable, unlike a rejected verdict, which is a result.
var ErrUnavailable = errors.New("judge service unavailable")

// Judge0 language ids.
var languageIDs = map[string]int{
	"python":     71,
	"javascript": 63,
	"java":       62,
	"cpp":        54,
	"c":          50,
}

const defaultLanguageID = 71 // Python 3

const statusAccepted = 3 // Judge0 status id for Accepted

type TestResult struct {
	Input          string
	ExpectedOutput string
	ActualOutput   string
	Passed         bool
	Status         string
	Error          string
}

type Verdict struct {
	Status      string
	Passed      bool
	Score       int
	Time        string
	Memory      int
	Stdout      string
	Stderr      string
	TestResults []TestResult
}

type Client struct {
	baseURL string
	apiKey  string
	apiHost string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL, apiKey, apiHost string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		apiHost: apiHost,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "judge").Logger(),
	}
}

type submissionRequest struct {
	SourceCode     string   `json:"source_code"`
	LanguageID     int      `json:"language_id"`
	Stdin          string   `json:"stdin"`
	ExpectedOutput string   `json:"expected_output"`
	CPUTimeLimit   *float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimit    *int     `json:"memory_limit,omitempty"`
}

type submissionResponse struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Time   string `json:"time"`
	Memory int    `json:"memory"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Execute judges code against a problem's hidden test set. The language and
// the tests come from the session-held problem snapshot, never the client.
func (c *Client) Execute(ctx context.Context, code string, problem *store.Problem) (*Verdict, error) {
	languageID, ok := languageIDs[problem.Language]
	if !ok {
		languageID = defaultLanguageID
	}

	cpuLimit := float64(problem.TimeLimitMs) / 1000
	memLimit := problem.MemoryLimitMb * 1024

	primary, err := c.submit(ctx, submissionRequest{
		SourceCode:   code,
		LanguageID:   languageID,
		CPUTimeLimit: &cpuLimit,
		MemoryLimit:  &memLimit,
	})
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{
		Status: primary.Status.Description,
		Time:   primary.Time,
		Memory: primary.Memory,
		Stdout: primary.Stdout,
		Stderr: primary.Stderr,
	}

	// Anything past "Processing" that is not Accepted is an outright
	// rejection (compile error, runtime error); no point running tests.
	if primary.Status.ID > statusAccepted {
		return verdict, nil
	}

	results := c.runTestCases(ctx, code, languageID, problem.HiddenTests)
	verdict.TestResults = results

	passedCount := 0
	for _, r := range results {
		if r.Passed {
			passedCount++
		}
	}

	if len(results) == 0 {
		verdict.Passed = primary.Status.ID == statusAccepted
		if verdict.Passed {
			verdict.Score = 100
		}
		return verdict, nil
	}

	verdict.Passed = passedCount == len(results)
	verdict.Score = int(math.Round(float64(passedCount) / float64(len(results)) * 100))
	return verdict, nil
}

// runTestCases judges every hidden test as an independent execution. A
// failure to reach the judge for one test marks that test failed rather than
// aborting the whole run.
func (c *Client) runTestCases(ctx context.Context, code string, languageID int, tests []store.TestCase) []TestResult {
	results := make([]TestResult, 0, len(tests))

	for _, test := range tests {
		resp, err := c.submit(ctx, submissionRequest{
			SourceCode:     code,
			LanguageID:     languageID,
			Stdin:          test.Input,
			ExpectedOutput: test.Output,
		})
		if err != nil {
			results = append(results, TestResult{
				Input:  test.Input,
				Passed: false,
				Error:  err.Error(),
			})
			continue
		}

		actual := strings.TrimSpace(resp.Stdout)
		results = append(results, TestResult{
			Input:          test.Input,
			ExpectedOutput: test.Output,
			ActualOutput:   actual,
			Passed:         resp.Status.ID == statusAccepted,
			Status:         resp.Status.Description,
		})
	}

	return results
}

func (c *Client) submit(ctx context.Context, reqBody submissionRequest) (*submissionResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=false&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", c.apiHost)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Judge request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("Judge returned unexpected status")
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	var submission submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return &submission, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"quiz-attempt-service/internal/domain"
)

// HTTPAPI is a thin JSON client for the attempt endpoints, suitable for
// driving a Runner against a remote server.
type HTTPAPI struct {
	base   string
	userID string
	role   string
	client *http.Client
}

func NewHTTPAPI(base, userID, role string) *HTTPAPI {
	return &HTTPAPI{base: base, userID: userID, role: role, client: http.DefaultClient}
}

type StartResponse struct {
	AttemptID        string                   `json:"attemptId"`
	TimeLimitMinutes int                      `json:"timeLimitMinutes"`
	Questions        []domain.StudentQuestion `json:"questions"`
	Answers          map[string]string        `json:"answers"`
}

// Start opens (or resumes) an attempt and returns the identifiers the Runner
// needs along with the served question set.
func (c *HTTPAPI) Start(ctx context.Context, quizID string) (StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, http.MethodPost, "/quizzes/"+quizID+"/attempts", nil, &out)
	return out, err
}

func (c *HTTPAPI) SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) error {
	body := map[string]string{"questionId": questionID, "optionId": optionID}
	return c.do(ctx, http.MethodPut, "/attempts/"+attemptID+"/answers", body, nil)
}

func (c *HTTPAPI) Submit(ctx context.Context, attemptID string, auto bool) (domain.Result, error) {
	var out struct {
		Result domain.Result `json:"result"`
	}
	body := map[string]bool{"auto": auto}
	err := c.do(ctx, http.MethodPost, "/attempts/"+attemptID+"/submit", body, &out)
	return out.Result, err
}

func (c *HTTPAPI) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", c.userID)
	if c.role != "" {
		req.Header.Set("X-User-Role", c.role)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

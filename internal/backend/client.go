// Package backend submits extracted answers to the grading backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ironsheep/omr-reader/internal/omr"
)

// DefaultBaseURL is the examiner API of a local backend.
const DefaultBaseURL = "http://localhost:8080/api/v1/examiner"

// Client posts evaluation requests.
type Client struct {
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string

	httpc *http.Client
}

// NewClient creates a client with a 30 second request timeout.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// EvaluateRequest is the body of an evaluate call.
type EvaluateRequest struct {
	AnswerKey      []omr.AnswerKeyEntry     `json:"answerKey"`
	StudentAnswers []omr.StudentAnswerEntry `json:"studentAnswers"`
}

// Evaluate posts answers for a submission and returns the decoded response
// body. Any non-2xx status is an error; the response is not interpreted.
func (c *Client) Evaluate(ctx context.Context, submissionID string, key []omr.AnswerKeyEntry, answers []omr.StudentAnswerEntry) (map[string]any, error) {
	if submissionID == "" {
		return nil, fmt.Errorf("submission id is required")
	}
	if key == nil {
		key = []omr.AnswerKeyEntry{}
	}
	if answers == nil {
		answers = []omr.StudentAnswerEntry{}
	}

	payload, err := json.Marshal(EvaluateRequest{AnswerKey: key, StudentAnswers: answers})
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluate request: %w", err)
	}

	endpoint := c.BaseURL + "/exam/evaluate/" + url.PathEscape(submissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", submissionID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: failed to read response: %w", submissionID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("evaluate %s: backend returned %d: %s", submissionID, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("evaluate %s: bad JSON: %w", submissionID, err)
	}
	return out, nil
}

// Package remote is the HTTP client for the evaluation and chat service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/milestone-tracker/internal/model"
)

// RequestTimeout bounds every call to the service.
const RequestTimeout = 15 * time.Second

// DefaultBaseURL is where the service listens during local development.
const DefaultBaseURL = "http://localhost:8000"

// EvaluationRequest is the body POSTed to /evaluate.
type EvaluationRequest struct {
	ChildAgeMonths      int      `json:"child_age_months"`
	CompletedMilestones []string `json:"completed_milestones"`
	ChildName           string   `json:"child_name"`
}

// EvaluationResponse is the part of the /evaluate answer the client consumes.
type EvaluationResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`

	// RequestID is the correlation id sent with the request.
	RequestID string `json:"-"`
}

// ChatRequest is the body POSTed to /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ChildAgeMonths *int   `json:"child_age_months,omitempty"`
}

// ChatResponse is the chat collaborator's answer.
type ChatResponse struct {
	Response            string   `json:"response"`
	SuggestedActivities []string `json:"suggested_activities,omitempty"`
	ReferralNeeded      bool     `json:"referral_needed"`
	ResponseType        string   `json:"response_type"`
}

// ValidResponseTypes are the chat response types the client accepts.
var ValidResponseTypes = map[string]bool{
	"red_flag": true,
	"concern":  true,
	"normal":   true,
	"error":    true,
}

// Client talks to the service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: RequestTimeout},
	}
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// Evaluate submits completed milestones. The result category is returned as
// sent; mapping it is the caller's job.
func (c *Client) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResponse, error) {
	if req.CompletedMilestones == nil {
		req.CompletedMilestones = []string{}
	}
	var out EvaluationResponse
	id, err := c.post(ctx, "/evaluate", req, &out)
	if err != nil {
		return nil, err
	}
	out.RequestID = id
	return &out, nil
}

// Chat asks the chat collaborator a caregiver question.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, model.NewError(model.KindInvalidInput, nil, "empty chat message")
	}
	var out ChatResponse
	if _, err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	if !ValidResponseTypes[out.ResponseType] {
		return nil, model.NewError(model.KindServiceError, nil, "unrecognized response_type %q", out.ResponseType)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", model.NewError(model.KindInternal, err, "encode request")
	}
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", model.NewError(model.KindInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%s: %w", path, ctx.Err())
		}
		return "", model.NewError(model.KindServiceUnavailable, err, "%s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", model.NewError(model.KindServiceError, nil, "%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%s: %w", path, ctx.Err())
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", model.NewError(model.KindServiceUnavailable, err, "%s", path)
		}
		return "", model.NewError(model.KindServiceError, err, "decode %s response", path)
	}
	return requestID, nil
}

package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var (
	ErrRejected          = errors.New("rejected by tally gateway")
	ErrConnectivity      = errors.New("tally gateway unreachable")
	ErrMalformedResponse = errors.New("malformed tally gateway response")
)

const (
	defaultVerifyMessage  = "token invalid or already used"
	defaultVoteMessage    = "submission failed"
	defaultStatusMessage  = "status unavailable"
	defaultResultsMessage = "results unavailable"
)

// RejectedError carries the gateway's human-readable refusal.
// Error returns the message verbatim so it can be shown to the voter.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Client is a Go SDK for the remote tally gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new tally gateway client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: NormalizeBaseURL(baseURL),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NormalizeBaseURL trims whitespace and trailing slashes
func NormalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// BaseURL returns the gateway base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common shape of every gateway response
type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type verifyRequest struct {
	PollID string `json:"pollId"`
	Token  string `json:"token"`
}

// Verify asks the gateway whether token is valid and unused for pollID
func (c *Client) Verify(ctx context.Context, pollID, token string) error {
	body, err := json.Marshal(verifyRequest{PollID: pollID, Token: token})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	status, resp, err := c.doRequest(ctx, http.MethodPost, "/verify", bytes.NewReader(body))
	if err != nil {
		return err
	}

	return accept(status, resp, defaultVerifyMessage)
}

// Vote submits a ballot
func (c *Client) Vote(ctx context.Context, payload models.SubmissionPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	status, resp, err := c.doRequest(ctx, http.MethodPost, "/vote", bytes.NewReader(body))
	if err != nil {
		return err
	}

	return accept(status, resp, defaultVoteMessage)
}

// Status retrieves the voting window
func (c *Client) Status(ctx context.Context) (*models.PollStatus, error) {
	status, resp, err := c.doRequest(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		envelope
		Now    time.Time `json:"now"`
		EndAt  time.Time `json:"endAt"`
		Closed bool      `json:"closed"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		if !isSuccess(status) {
			return nil, &RejectedError{StatusCode: status, Message: defaultStatusMessage}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !isSuccess(status) || !result.OK {
		return nil, rejected(status, result.Message, defaultStatusMessage)
	}

	return &models.PollStatus{
		Now:    result.Now,
		EndAt:  result.EndAt,
		Closed: result.Closed,
	}, nil
}

// ResultsFull retrieves the aggregated per-category counts for pollID
func (c *Client) ResultsFull(ctx context.Context, pollID string) (*models.Summary, error) {
	path := "/results/full?pollId=" + url.QueryEscape(pollID)

	status, resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		envelope
		TotalVotes int                       `json:"totalVotes"`
		Counts     map[string]map[string]int `json:"counts"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		if !isSuccess(status) {
			return nil, &RejectedError{StatusCode: status, Message: fmt.Sprintf("%s (HTTP %d)", defaultResultsMessage, status)}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !isSuccess(status) || !result.OK {
		return nil, rejected(status, result.Message, fmt.Sprintf("%s (HTTP %d)", defaultResultsMessage, status))
	}

	if result.Counts == nil {
		result.Counts = map[string]map[string]int{}
	}

	return &models.Summary{
		TotalVotes: result.TotalVotes,
		Counts:     result.Counts,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// accept turns a verify/vote response into nil or a RejectedError.
// An unreadable body never counts as success.
func accept(status int, body []byte, fallback string) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &RejectedError{StatusCode: status, Message: fallback}
	}
	if !isSuccess(status) || !env.OK {
		return rejected(status, env.Message, fallback)
	}
	return nil
}

func rejected(status int, message, fallback string) *RejectedError {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &RejectedError{StatusCode: status, Message: message}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// doRequest performs an HTTP request. Transport failures are reported as
// ErrConnectivity; HTTP error statuses are left to the caller.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrConnectivity, err)
	}

	return resp.StatusCode, respBody, nil
}

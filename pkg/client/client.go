// Package client is a Go SDK for the ballot-kiosk HTTP API.
package client

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

// APIError is a non-success envelope returned by the kiosk
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client is a Go SDK for the ballot-kiosk API
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates a new kiosk client. apiKey is only needed for admin calls.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CatalogResponse is the voter-facing catalog
type CatalogResponse struct {
	PollID     string            `json:"pollId"`
	Categories []models.Category `json:"categories"`
	People     []models.Person   `json:"people"`
}

// ResultsGateway is the admin results gateway setting
type ResultsGateway struct {
	URL        string `json:"url"`
	Configured bool   `json:"configured"`
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Catalog retrieves categories and people
func (c *Client) Catalog(ctx context.Context) (*CatalogResponse, error) {
	var out CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/catalog", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ballot retrieves the current ballot snapshot
func (c *Client) Ballot(ctx context.Context) (*models.BallotSnapshot, error) {
	return c.snapshot(ctx, http.MethodGet, "/api/v1/ballot", nil)
}

// VerifyToken starts a voting session with token
func (c *Client) VerifyToken(ctx context.Context, token string) (*models.BallotSnapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/api/v1/token/verify", models.VerifyTokenRequest{Token: token})
}

// Select adds a nominee to a category
func (c *Client) Select(ctx context.Context, categoryID, personID string) (*models.BallotSnapshot, error) {
	path := fmt.Sprintf("/api/v1/ballot/categories/%s/selections", url.PathEscape(categoryID))
	return c.snapshot(ctx, http.MethodPost, path, models.SelectNomineeRequest{PersonID: personID})
}

// Deselect removes a nominee from a category
func (c *Client) Deselect(ctx context.Context, categoryID, personID string) (*models.BallotSnapshot, error) {
	path := fmt.Sprintf("/api/v1/ballot/categories/%s/selections/%s", url.PathEscape(categoryID), url.PathEscape(personID))
	return c.snapshot(ctx, http.MethodDelete, path, nil)
}

// Submit sends the ballot
func (c *Client) Submit(ctx context.Context) (*models.BallotSnapshot, error) {
	return c.snapshot(ctx, http.MethodPost, "/api/v1/ballot/submit", nil)
}

// Results retrieves the ranked results. refresh bypasses the kiosk's cache.
func (c *Client) Results(ctx context.Context, refresh bool) (*models.ResultsView, error) {
	path := "/api/v1/admin/results"
	if refresh {
		path += "?refresh=true"
	}

	var out models.ResultsView
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResultsGateway retrieves the configured results gateway
func (c *Client) ResultsGateway(ctx context.Context) (*ResultsGateway, error) {
	var out ResultsGateway
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/settings/results-gateway", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetResultsGateway saves the results gateway base URL
func (c *Client) SetResultsGateway(ctx context.Context, baseURL string) (*ResultsGateway, error) {
	var out ResultsGateway
	body := map[string]string{"url": baseURL}
	if err := c.do(ctx, http.MethodPut, "/api/v1/admin/settings/results-gateway", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) snapshot(ctx context.Context, method, path string, body interface{}) (*models.BallotSnapshot, error) {
	var out models.BallotSnapshot
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs a request and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("HTTP %d: failed to unmarshal response: %w", resp.StatusCode, err)
	}

	if !result.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: string(respBody)}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

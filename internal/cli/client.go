package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aura-webinar/livestream/internal/landing"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/webinars"
	"github.com/aura-webinar/livestream/internal/wizard"
)

var _ wizard.Creator = (*APIClient)(nil)

// APIClient is a thin HTTP client for the webinar server.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// TokenResponse is the body of POST /api/stream-token.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	APIKey string `json:"apiKey"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IssueToken asks the server for a provider token for userID.
func (c *APIClient) IssueToken(ctx context.Context, userID string) (*TokenResponse, error) {
	raw, status, err := c.send(ctx, http.MethodPost, "/api/stream-token", map[string]string{"userId": userID})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var body struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.Unmarshal(raw, &body)
		msg := body.Error
		if body.Details != "" {
			msg += ": " + body.Details
		}
		return nil, &APIError{StatusCode: status, Message: msg}
	}
	var out TokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &out, nil
}

// ListWebinars returns the registry, newest first.
func (c *APIClient) ListWebinars(ctx context.Context) ([]models.Webinar, error) {
	var out []models.Webinar
	if err := c.call(ctx, http.MethodGet, "/webinars", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Landing fetches the landing page of a webinar.
func (c *APIClient) Landing(ctx context.Context, id string) (*landing.Page, error) {
	var out landing.Page
	if err := c.call(ctx, http.MethodGet, "/webinars/"+id+"/landing", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create provisions a webinar from a complete draft.
func (c *APIClient) Create(ctx context.Context, d webinars.Draft, hostID string) (*models.Webinar, error) {
	req := webinars.CreateRequest{Draft: d, HostID: hostID}
	var out models.Webinar
	if err := c.call(ctx, http.MethodPost, "/webinars", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs an enveloped request and decodes data into out.
func (c *APIClient) call(ctx context.Context, method, path string, body, out any) error {
	raw, status, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	}
	if status >= 300 || !env.Success {
		return &APIError{StatusCode: status, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *APIClient) send(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

package stream

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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/errs"
)

const maxErrorBody = 4096

// Connect opens a connection for user authenticated by token. When the secret is available
// the token is checked to belong to the user before any call is made with it.
func (c *Client) Connect(ctx context.Context, user User, token string) (Connection, error) {
	if c.issuer.APIKey() == "" {
		return nil, errs.Configuration("STREAM_API_KEY")
	}
	if user.ID == "" || token == "" {
		return nil, &errs.ValidationError{Fields: missing(map[string]string{"userId": user.ID, "token": token})}
	}
	if c.issuer.Configured() == nil {
		claims, err := c.issuer.Verify(token)
		if err != nil {
			return nil, &errs.ProviderError{Op: "connect", StatusCode: http.StatusUnauthorized, Message: err.Error(), Err: err}
		}
		if claims.UserID != user.ID {
			return nil, &errs.ProviderError{Op: "connect", StatusCode: http.StatusUnauthorized, Message: "token was issued for a different user"}
		}
	}
	c.logger.Debug("provider connection opened", zap.String("user_id", user.ID))
	return &connection{client: c, user: user, token: token}, nil
}

type connection struct {
	client *Client
	user   User
	token  string

	mu     sync.Mutex
	closed bool
}

func (cn *connection) User() User { return cn.user }

func (cn *connection) active(op string) error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return &errs.ProviderError{Op: op, Message: "connection closed"}
	}
	return nil
}

// JoinCall joins the call as the connected user, creating it only when create is set.
func (cn *connection) JoinCall(ctx context.Context, callType, callID string, create bool) (*Call, error) {
	if err := cn.active("join call"); err != nil {
		return nil, err
	}
	var env joinEnvelope
	err := cn.post(ctx, "join call", callPath(callType, callID)+"/join", map[string]any{"create": create}, &env)
	if err != nil {
		return nil, err
	}
	if env.Call.ID == "" {
		return cn.client.GetCall(ctx, callType, callID)
	}
	return env.Call.toCall(), nil
}

func (cn *connection) LeaveCall(ctx context.Context, callType, callID string) error {
	if err := cn.active("leave call"); err != nil {
		return err
	}
	return cn.post(ctx, "leave call", callPath(callType, callID)+"/leave", struct{}{}, nil)
}

// Disconnect closes the connection locally; later calls on it fail.
func (cn *connection) Disconnect(_ context.Context) error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return &errs.ProviderError{Op: "disconnect", Message: "connection already closed"}
	}
	cn.closed = true
	cn.client.logger.Debug("provider connection closed", zap.String("user_id", cn.user.ID))
	return nil
}

type joinEnvelope struct {
	Call wireCall `json:"call"`
}

type wireCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CreatedBy struct {
		ID string `json:"id"`
	} `json:"created_by"`
	Backstage bool       `json:"backstage"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Session   *struct {
		Participants []json.RawMessage `json:"participants"`
	} `json:"session,omitempty"`
}

func (w wireCall) toCall() *Call {
	call := &Call{
		ID:          w.ID,
		Type:        w.Type,
		CreatedByID: w.CreatedBy.ID,
		Backstage:   w.Backstage,
		StartsAt:    w.StartsAt,
		EndedAt:     w.EndedAt,
	}
	if w.Session != nil {
		call.ParticipantCount = len(w.Session.Participants)
	}
	return call
}

func callPath(callType, callID string) string {
	if callType == "" {
		callType = CallTypeLivestream
	}
	return fmt.Sprintf("/video/call/%s/%s", url.PathEscape(callType), url.PathEscape(callID))
}

// post sends a user-authenticated request and decodes the reply into out when out is set.
func (cn *connection) post(ctx context.Context, op, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal body: %w", op, err)
	}
	c := cn.client
	endpoint := c.baseURL + path + "?api_key=" + url.QueryEscape(c.issuer.APIKey())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return &errs.ProviderError{Op: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", cn.token)
	req.Header.Set("Stream-Auth-Type", "jwt")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("provider request failed", zap.String("op", op), zap.Error(err))
		return &errs.ProviderError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &errs.ProviderError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Status, data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &errs.ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error(), Err: err}
	}
	return nil
}

func errorMessage(status string, raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}

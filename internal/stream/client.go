package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	getstream "github.com/GetStream/getstream-go"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/config"
	"github.com/aura-webinar/livestream/internal/errs"
)

var _ Provider = (*Client)(nil)

// Client is the production Provider. Server-side call operations go through the provider's Go
// SDK; Connection operations act as the user with the user's own token.
type Client struct {
	baseURL string
	issuer  *Issuer
	sdk     *getstream.Stream
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates the provider client from stream configuration. Without credentials the
// SDK is not initialised and every server-side call fails with a configuration error.
func NewClient(cfg config.StreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		issuer:  NewIssuer(cfg.APIKey, cfg.APISecret, cfg.TokenTTL()),
		http:    &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
	if c.issuer.Configured() != nil {
		return c
	}

	opts := []getstream.ClientOption{}
	if cfg.APIBaseURL != "" {
		opts = append(opts, getstream.WithBaseUrl(cfg.APIBaseURL))
	}
	if cfg.Timeout() > 0 {
		opts = append(opts, getstream.WithTimeout(cfg.Timeout()))
	}
	sdk, err := getstream.NewClient(cfg.APIKey, cfg.APISecret, opts...)
	if err != nil {
		logger.Error("stream sdk init failed", zap.Error(err))
		return c
	}
	c.sdk = sdk
	return c
}

// Issuer exposes the token issuer the client signs with.
func (c *Client) Issuer() *Issuer { return c.issuer }

// APIKey returns the public key clients connect with.
func (c *Client) APIKey() string { return c.issuer.APIKey() }

// IssueToken implements Provider.
func (c *Client) IssueToken(userID string, expiry time.Duration) (Token, error) {
	return c.issuer.IssueToken(userID, expiry)
}

func (c *Client) call(op, callType, callID string) (*getstream.Call, error) {
	if err := c.issuer.Configured(); err != nil {
		return nil, err
	}
	if c.sdk == nil {
		return nil, &errs.ProviderError{Op: op, Message: "provider client is not initialised"}
	}
	if callType == "" {
		callType = CallTypeLivestream
	}
	return c.sdk.Video().Call(callType, callID), nil
}

// CreateOrGetCall creates the call in backstage mode with the creator as host member. An
// existing call with the same id is returned unchanged.
func (c *Client) CreateOrGetCall(ctx context.Context, req CreateCallRequest) (*Call, error) {
	if req.CallID == "" || req.CreatedByID == "" {
		return nil, &errs.ValidationError{Fields: missing(map[string]string{"callId": req.CallID, "createdById": req.CreatedByID})}
	}
	call, err := c.call("create call", req.CallType, req.CallID)
	if err != nil {
		return nil, err
	}
	resp, err := call.GetOrCreate(ctx, getOrCreateRequest(req))
	if err != nil {
		c.logger.Warn("create call failed", zap.String("call_id", req.CallID), zap.Error(err))
		return nil, providerError("create call", err)
	}
	out := callFromSDK(resp.Data.Call)
	if resp.Data.Created {
		c.logger.Info("call created", zap.String("call_id", out.ID), zap.String("created_by", out.CreatedByID))
	} else {
		c.logger.Info("call already exists", zap.String("call_id", out.ID))
	}
	return out, nil
}

// GetCall fetches the current state of a call.
func (c *Client) GetCall(ctx context.Context, callType, callID string) (*Call, error) {
	call, err := c.call("get call", callType, callID)
	if err != nil {
		return nil, err
	}
	resp, err := call.Get(ctx, &getstream.GetCallRequest{})
	if err != nil {
		return nil, providerError("get call", err)
	}
	return callFromSDK(resp.Data.Call), nil
}

// StartCall takes the call out of backstage (go live).
func (c *Client) StartCall(ctx context.Context, callType, callID string) (*Call, error) {
	call, err := c.call("go live", callType, callID)
	if err != nil {
		return nil, err
	}
	resp, err := call.GoLive(ctx, &getstream.GoLiveRequest{})
	if err != nil {
		return nil, providerError("go live", err)
	}
	return callFromSDK(resp.Data.Call), nil
}

// StopCall puts the call back into backstage.
func (c *Client) StopCall(ctx context.Context, callType, callID string) (*Call, error) {
	call, err := c.call("stop live", callType, callID)
	if err != nil {
		return nil, err
	}
	resp, err := call.StopLive(ctx, &getstream.StopLiveRequest{})
	if err != nil {
		return nil, providerError("stop live", err)
	}
	return callFromSDK(resp.Data.Call), nil
}

func getOrCreateRequest(req CreateCallRequest) *getstream.GetOrCreateCallRequest {
	data := &getstream.CallRequest{
		CreatedByID: getstream.PtrTo(req.CreatedByID),
		Members:     []getstream.MemberRequest{{UserID: req.CreatedByID, Role: getstream.PtrTo("host")}},
		Custom:      map[string]any{"title": req.Title, "description": req.Description},
		SettingsOverride: &getstream.CallSettingsRequest{
			Backstage: &getstream.BackstageSettingsRequest{Enabled: getstream.PtrTo(true)},
		},
	}
	if req.StartsAt != nil {
		data.StartsAt = &getstream.Timestamp{Time: req.StartsAt}
	}
	return &getstream.GetOrCreateCallRequest{Data: data}
}

func callFromSDK(c getstream.CallResponse) *Call {
	out := &Call{
		ID:          c.ID,
		Type:        c.Type,
		CreatedByID: c.CreatedBy.ID,
		Backstage:   c.Backstage,
	}
	if c.StartsAt != nil {
		out.StartsAt = c.StartsAt.Time
	}
	if c.EndedAt != nil {
		out.EndedAt = c.EndedAt.Time
	}
	if c.Session != nil {
		out.ParticipantCount = len(c.Session.Participants)
	}
	return out
}

// providerError maps an SDK failure to a ProviderError. StatusCode stays 0 for transport
// failures.
func providerError(op string, err error) error {
	pe := &errs.ProviderError{Op: op, Message: err.Error(), Err: err}
	var se getstream.StreamError
	var sp *getstream.StreamError
	switch {
	case errors.As(err, &se):
		pe.StatusCode, pe.Message = se.StatusCode, se.Message
	case errors.As(err, &sp):
		pe.StatusCode, pe.Message = sp.StatusCode, sp.Message
	}
	return pe
}

func missing(fields map[string]string) []string {
	var out []string
	for _, name := range []string{"callId", "createdById", "userId", "token"} {
		if v, ok := fields[name]; ok && v == "" {
			out = append(out, name)
		}
	}
	return out
}

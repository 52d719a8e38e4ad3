// Package streamtest provides an in-memory stream.Provider for tests and local runs.
package streamtest

import (
	"context"
	"sync"
	"time"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/stream"
)

var _ stream.Provider = (*Provider)(nil)

// Provider keeps calls in memory. Set the *Err fields to make the matching operation fail.
type Provider struct {
	Issuer *stream.Issuer

	CreateErr  error
	GetErr     error
	StartErr   error
	StopErr    error
	ConnectErr error
	JoinErr    error
	LeaveErr   error

	mu          sync.Mutex
	calls       map[string]*stream.Call
	creates     int
	joins       int
	leaves      int
	disconnects int
}

// New returns a provider with credentials configured.
func New() *Provider {
	return &Provider{
		Issuer: stream.NewIssuer("test-key", "test-secret", time.Hour),
		calls:  make(map[string]*stream.Call),
	}
}

func key(callType, callID string) string { return callType + ":" + callID }

func (p *Provider) APIKey() string { return p.Issuer.APIKey() }

func (p *Provider) IssueToken(userID string, expiry time.Duration) (stream.Token, error) {
	return p.Issuer.IssueToken(userID, expiry)
}

func (p *Provider) CreateOrGetCall(_ context.Context, req stream.CreateCallRequest) (*stream.Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	if req.CallType == "" {
		req.CallType = stream.CallTypeLivestream
	}
	if c, ok := p.calls[key(req.CallType, req.CallID)]; ok {
		cp := *c
		return &cp, nil
	}
	c := &stream.Call{ID: req.CallID, Type: req.CallType, CreatedByID: req.CreatedByID, Backstage: true, StartsAt: req.StartsAt}
	p.calls[key(req.CallType, req.CallID)] = c
	cp := *c
	return &cp, nil
}

func (p *Provider) GetCall(_ context.Context, callType, callID string) (*stream.Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GetErr != nil {
		return nil, p.GetErr
	}
	return p.lookup("get call", callType, callID)
}

func (p *Provider) StartCall(_ context.Context, callType, callID string) (*stream.Call, error) {
	return p.setBackstage("go live", callType, callID, false, p.StartErr)
}

func (p *Provider) StopCall(_ context.Context, callType, callID string) (*stream.Call, error) {
	return p.setBackstage("stop live", callType, callID, true, p.StopErr)
}

func (p *Provider) setBackstage(op, callType, callID string, backstage bool, failure error) (*stream.Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if failure != nil {
		return nil, failure
	}
	if _, err := p.lookup(op, callType, callID); err != nil {
		return nil, err
	}
	c := p.calls[key(callType, callID)]
	c.Backstage = backstage
	cp := *c
	return &cp, nil
}

func (p *Provider) lookup(op, callType, callID string) (*stream.Call, error) {
	c, ok := p.calls[key(callType, callID)]
	if !ok {
		return nil, &errs.ProviderError{Op: op, StatusCode: 404, Message: "call not found"}
	}
	cp := *c
	return &cp, nil
}

func (p *Provider) Connect(_ context.Context, user stream.User, token string) (stream.Connection, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if user.ID == "" || token == "" {
		return nil, &errs.ValidationError{Fields: []string{"userId", "token"}}
	}
	return &Connection{p: p, user: user}, nil
}

// SetParticipants overrides the participant count reported for a call.
func (p *Provider) SetParticipants(callType, callID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.calls[key(callType, callID)]; ok {
		c.ParticipantCount = n
	}
}

// Call returns a copy of the stored call, or nil.
func (p *Provider) Call(callType, callID string) *stream.Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, err := p.lookup("", callType, callID)
	if err != nil {
		return nil
	}
	return c
}

// Counts reports how many creates, joins, leaves and disconnects were observed.
func (p *Provider) Counts() (creates, joins, leaves, disconnects int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates, p.joins, p.leaves, p.disconnects
}

// Connection is the fake per-user connection.
type Connection struct {
	p      *Provider
	user   stream.User
	closed bool
}

func (c *Connection) User() stream.User { return c.user }

// JoinCall joins an existing call, creating it when create is set.
func (c *Connection) JoinCall(_ context.Context, callType, callID string, create bool) (*stream.Call, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.joins++
	if c.closed {
		return nil, &errs.ProviderError{Op: "join call", Message: "connection closed"}
	}
	if c.p.JoinErr != nil {
		return nil, c.p.JoinErr
	}
	existing, ok := c.p.calls[key(callType, callID)]
	if !ok {
		if !create {
			return nil, &errs.ProviderError{Op: "join call", StatusCode: 404, Message: "call not found"}
		}
		existing = &stream.Call{ID: callID, Type: callType, CreatedByID: c.user.ID, Backstage: true}
		c.p.calls[key(callType, callID)] = existing
	}
	existing.ParticipantCount++
	cp := *existing
	return &cp, nil
}

func (c *Connection) LeaveCall(_ context.Context, callType, callID string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.leaves++
	if c.p.LeaveErr != nil {
		return c.p.LeaveErr
	}
	if existing, ok := c.p.calls[key(callType, callID)]; ok && existing.ParticipantCount > 0 {
		existing.ParticipantCount--
	}
	return nil
}

func (c *Connection) Disconnect(_ context.Context) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.disconnects++
	if c.closed {
		return &errs.ProviderError{Op: "disconnect", Message: "connection already closed"}
	}
	c.closed = true
	return nil
}

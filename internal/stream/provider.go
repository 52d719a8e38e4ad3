// Package stream integrates the hosted video provider: user tokens, livestream call
// provisioning, broadcast control and per-user connections.
package stream

import (
	"context"
	"time"
)

// CallTypeLivestream is the call type every webinar call is created with.
const CallTypeLivestream = "livestream"

// Provider is the one interface the rest of the service talks to the video provider through.
// Client is the production implementation; streamtest.Provider is the in-memory one.
type Provider interface {
	APIKey() string
	IssueToken(userID string, expiry time.Duration) (Token, error)
	CreateOrGetCall(ctx context.Context, req CreateCallRequest) (*Call, error)
	GetCall(ctx context.Context, callType, callID string) (*Call, error)
	StartCall(ctx context.Context, callType, callID string) (*Call, error)
	StopCall(ctx context.Context, callType, callID string) (*Call, error)
	Connect(ctx context.Context, user User, token string) (Connection, error)
}

// Connection is one user's authenticated link to the provider.
type Connection interface {
	User() User
	JoinCall(ctx context.Context, callType, callID string, create bool) (*Call, error)
	LeaveCall(ctx context.Context, callType, callID string) error
	Disconnect(ctx context.Context) error
}

// User identifies a provider participant.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CreateCallRequest asks for a backstage livestream call with CreatedByID as host.
type CreateCallRequest struct {
	CallType    string
	CallID      string
	Title       string
	Description string
	CreatedByID string
	StartsAt    *time.Time
}

// Call is the provider-reported state of a call resource.
type Call struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	CreatedByID      string     `json:"created_by_id"`
	Backstage        bool       `json:"backstage"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	ParticipantCount int        `json:"participant_count"`
}

// Live reports whether the call is broadcasting (out of backstage).
func (c *Call) Live() bool {
	return c != nil && !c.Backstage && c.EndedAt == nil
}

// Package livesession manages visits to a webinar's live page: identity and token selection,
// the provider connection, host broadcast controls and cleanup.
package livesession

import (
	"time"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/stream"
)

// State is the session's position in Loading -> Error | Connected.
type State string

const (
	StateLoading   State = "loading"
	StateError     State = "error"
	StateConnected State = "connected"
)

// ErrNotJoinable is returned when the webinar is unknown or has no livestream call. It matches
// errs.ErrNotFound.
var ErrNotJoinable error = notJoinableError{}

type notJoinableError struct{}

func (notJoinableError) Error() string { return "webinar not found or stream not configured" }

func (notJoinableError) Is(target error) bool { return target == errs.ErrNotFound }

// Session is a snapshot of one visit.
type Session struct {
	ID               string    `json:"id"`
	WebinarID        string    `json:"webinarId"`
	CallID           string    `json:"callId,omitempty"`
	CallType         string    `json:"callType,omitempty"`
	UserID           string    `json:"userId,omitempty"`
	UserName         string    `json:"userName,omitempty"`
	IsHost           bool      `json:"isHost"`
	Token            string    `json:"token,omitempty"`
	APIKey           string    `json:"apiKey,omitempty"`
	State            State     `json:"state"`
	Error            string    `json:"error,omitempty"`
	Live             bool      `json:"live"`
	ParticipantCount int       `json:"participantCount"`
	OpenedAt         time.Time `json:"openedAt"`
	LastSeen         time.Time `json:"lastSeen"`
}

// CallEvent is pushed to feed subscribers whenever the provider-reported call state changes.
type CallEvent struct {
	CallID           string    `json:"callId"`
	Live             bool      `json:"live"`
	ParticipantCount int       `json:"participantCount"`
	At               time.Time `json:"at"`
}

func (s *Session) apply(call *stream.Call) bool {
	if call == nil {
		return false
	}
	changed := s.Live != call.Live() || s.ParticipantCount != call.ParticipantCount
	s.Live = call.Live()
	s.ParticipantCount = call.ParticipantCount
	return changed
}

func (s *Session) fail(err error) {
	s.State = StateError
	s.Error = err.Error()
	s.Token = ""
}

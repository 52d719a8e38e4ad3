package livesession

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/registry"
	"github.com/aura-webinar/livestream/internal/stream"
)

const cleanupTimeout = 10 * time.Second

// EventCallState is the feed event carrying a CallEvent.
const EventCallState = "call_state"

// Publisher delivers call events to feed subscribers. *realtime.Hub implements it.
type Publisher interface {
	Publish(callID string, event string, payload interface{})
}

// Options tunes the manager's background work.
type Options struct {
	PollInterval time.Duration
	IdleTimeout  time.Duration
}

type session struct {
	mu   sync.Mutex
	snap Session
	conn stream.Connection
}

type poller struct {
	cancel context.CancelFunc
	refs   int
}

// Manager owns every open live session on this instance.
type Manager struct {
	provider  stream.Provider
	registry  registry.Repository
	publisher Publisher
	logger    *zap.Logger
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	pollers  map[string]*poller
	pollWG   sync.WaitGroup
}

// NewManager creates a session manager. publisher may be nil.
func NewManager(provider stream.Provider, reg registry.Repository, publisher Publisher, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	return &Manager{
		provider:  provider,
		registry:  reg,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*session),
		pollers:   make(map[string]*poller),
	}
}

// Open runs the live-page handshake for webinarID. hostToken is the host credential the visitor
// holds, if any; it grants the host role only when it matches the one stored on the record.
//
// Viewers get a fresh viewer-{millis} identity per visit. Host visits do not: the stored token
// was signed for the record's HostID, so every host visit (two tabs included) connects as that
// same user and only the session ID tells them apart. The host-{webinarId}-{millis} form is
// used only for records without a HostID.
//
// The returned snapshot is in StateConnected, or in StateError together with the cause. Only
// connected sessions are kept.
func (m *Manager) Open(ctx context.Context, webinarID, hostToken string) (Session, error) {
	now := m.now()
	snap := Session{ID: uuid.NewString(), WebinarID: webinarID, State: StateLoading, OpenedAt: now, LastSeen: now}
	logger := m.logger.With(zap.String("session_id", snap.ID), zap.String("webinar_id", webinarID))

	w, err := m.registry.Get(ctx, webinarID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		snap.fail(err)
		return snap, err
	}
	if w == nil || !w.HasStream() {
		snap.fail(ErrNotJoinable)
		return snap, ErrNotJoinable
	}

	snap.CallID = w.StreamCallID
	snap.CallType = stream.CallTypeLivestream
	snap.IsHost = w.IsHostRecord() && hostToken != "" &&
		subtle.ConstantTimeCompare([]byte(hostToken), []byte(w.StreamToken)) == 1
	if hostToken != "" && !snap.IsHost {
		logger.Info("presented host token does not match, joining as viewer")
	}

	millis := now.UnixMilli()
	if snap.IsHost {
		snap.UserID = w.HostID
		if snap.UserID == "" {
			snap.UserID = fmt.Sprintf("host-%s-%d", webinarID, millis)
		}
		snap.UserName = "Host"
		snap.Token = w.StreamToken
	} else {
		snap.UserID = fmt.Sprintf("viewer-%d", millis)
		snap.UserName = "Viewer " + lastN(snap.UserID, 6)
		tok, err := m.provider.IssueToken(snap.UserID, 0)
		if err != nil {
			logger.Warn("viewer token issue failed", zap.Error(err))
			snap.fail(err)
			return snap, err
		}
		snap.Token = tok.Value
	}
	snap.APIKey = m.provider.APIKey()
	logger = logger.With(zap.String("user_id", snap.UserID), zap.Bool("host", snap.IsHost))

	conn, err := m.provider.Connect(ctx, stream.User{ID: snap.UserID, Name: snap.UserName}, snap.Token)
	if err != nil {
		logger.Warn("provider connect failed", zap.Error(err))
		snap.fail(err)
		return snap, err
	}
	call, err := conn.JoinCall(ctx, snap.CallType, snap.CallID, snap.IsHost)
	if err != nil {
		logger.Warn("join call failed", zap.Error(err))
		m.disconnect(conn, logger)
		snap.fail(err)
		return snap, err
	}

	snap.State = StateConnected
	snap.apply(call)

	m.mu.Lock()
	m.sessions[snap.ID] = &session{snap: snap, conn: conn}
	m.startPollerLocked(snap.CallType, snap.CallID)
	m.mu.Unlock()

	logger.Info("live session connected", zap.Bool("live", snap.Live), zap.Int("participants", snap.ParticipantCount))
	m.applyCall(snap.CallID, call)
	return snap, nil
}

// Get returns the current snapshot of a session.
func (m *Manager) Get(id string) (Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

// Touch marks the session as in use.
func (m *Manager) Touch(id string) {
	if s, err := m.lookup(id); err == nil {
		s.mu.Lock()
		s.snap.LastSeen = m.now()
		s.mu.Unlock()
	}
}

// Subscribe resolves a session for a realtime feed connection.
func (m *Manager) Subscribe(id string) (callID, userID string, err error) {
	snap, err := m.Get(id)
	if err != nil {
		return "", "", err
	}
	m.Touch(id)
	return snap.CallID, snap.UserID, nil
}

// Refresh re-queries the provider for the session's call and returns the updated snapshot.
func (m *Manager) Refresh(ctx context.Context, id string) (Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	m.Touch(id)
	s.mu.Lock()
	callType, callID := s.snap.CallType, s.snap.CallID
	s.mu.Unlock()

	call, err := m.provider.GetCall(ctx, callType, callID)
	if err != nil {
		snap, _ := m.Get(id)
		return snap, err
	}
	m.applyCall(callID, call)
	return m.Get(id)
}

// GoLive takes the session's call out of backstage. Host only.
func (m *Manager) GoLive(ctx context.Context, id string) (Session, error) {
	return m.control(ctx, id, "go live", m.provider.StartCall)
}

// StopLive puts the session's call back into backstage. Host only.
func (m *Manager) StopLive(ctx context.Context, id string) (Session, error) {
	return m.control(ctx, id, "stop live", m.provider.StopCall)
}

func (m *Manager) control(ctx context.Context, id, op string, fn func(context.Context, string, string) (*stream.Call, error)) (Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	s.snap.LastSeen = m.now()
	snap := s.snap
	s.mu.Unlock()
	if !snap.IsHost {
		return snap, errs.ErrNotHost
	}
	if snap.State != StateConnected {
		return snap, fmt.Errorf("%s in state %s: %w", op, snap.State, errs.ErrInvalidTransition)
	}

	call, err := fn(ctx, snap.CallType, snap.CallID)
	if err != nil {
		m.logger.Warn(op+" failed", zap.String("session_id", id), zap.String("call_id", snap.CallID), zap.Error(err))
		return snap, err
	}
	m.logger.Info(op, zap.String("session_id", id), zap.String("call_id", snap.CallID), zap.Bool("live", call.Live()))
	m.applyCall(snap.CallID, call)
	return m.Get(id)
}

// Close ends a session: leave the call, then disconnect. Provider failures are logged and
// swallowed; only an unknown session is an error.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.releasePollerLocked(s.snap.CallID)
	}
	m.mu.Unlock()
	if !ok {
		return errs.ErrSessionNotFound
	}
	m.cleanup(ctx, s, "closed")
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run reaps idle sessions until ctx ends, then closes every remaining session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Reap closes sessions idle for longer than the idle timeout and returns how many it closed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.opts.IdleTimeout)
	var stale []*session
	m.mu.Lock()
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.snap.LastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			m.releasePollerLocked(s.snap.CallID)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		m.cleanup(context.Background(), s, "idle")
	}
	return len(stale)
}

// Shutdown closes every session and stops the pollers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	for callID, p := range m.pollers {
		p.cancel()
		delete(m.pollers, callID)
	}
	m.mu.Unlock()
	for _, s := range all {
		m.cleanup(context.Background(), s, "shutdown")
	}
	m.pollWG.Wait()
}

func (m *Manager) cleanup(ctx context.Context, s *session, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	s.mu.Lock()
	snap, conn := s.snap, s.conn
	s.conn = nil
	s.mu.Unlock()
	logger := m.logger.With(zap.String("session_id", snap.ID), zap.String("call_id", snap.CallID), zap.String("reason", reason))
	if conn == nil {
		return
	}
	if err := conn.LeaveCall(ctx, snap.CallType, snap.CallID); err != nil {
		logger.Error("error leaving call", zap.Error(err))
	}
	m.disconnect(conn, logger)
	logger.Info("live session closed")
}

func (m *Manager) disconnect(conn stream.Connection, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := conn.Disconnect(ctx); err != nil {
		logger.Error("error disconnecting user", zap.Error(err))
	}
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	return s, nil
}

// applyCall copies provider-reported state onto every session of the call and publishes it
// when something changed.
func (m *Manager) applyCall(callID string, call *stream.Call) {
	if call == nil {
		return
	}
	changed := false
	m.mu.Lock()
	for _, s := range m.sessions {
		s.mu.Lock()
		if s.snap.CallID == callID && s.snap.State == StateConnected && s.snap.apply(call) {
			changed = true
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()
	if changed && m.publisher != nil {
		m.publisher.Publish(callID, EventCallState, CallEvent{
			CallID:           callID,
			Live:             call.Live(),
			ParticipantCount: call.ParticipantCount,
			At:               m.now().UTC(),
		})
	}
}

// startPollerLocked starts (or references) the poller of a call. m.mu must be held.
func (m *Manager) startPollerLocked(callType, callID string) {
	if p, ok := m.pollers[callID]; ok {
		p.refs++
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.pollers[callID] = &poller{cancel: cancel, refs: 1}
	m.pollWG.Add(1)
	go func() {
		defer m.pollWG.Done()
		m.poll(ctx, callType, callID)
	}()
}

// releasePollerLocked drops one reference and stops the poller with the last one. m.mu must be held.
func (m *Manager) releasePollerLocked(callID string) {
	p, ok := m.pollers[callID]
	if !ok {
		return
	}
	p.refs--
	if p.refs <= 0 {
		p.cancel()
		delete(m.pollers, callID)
	}
}

func (m *Manager) poll(ctx context.Context, callType, callID string) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reqCtx, cancel := context.WithTimeout(ctx, m.opts.PollInterval)
			call, err := m.provider.GetCall(reqCtx, callType, callID)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Debug("call poll failed", zap.String("call_id", callID), zap.Error(err))
				}
				continue
			}
			m.applyCall(callID, call)
		}
	}
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

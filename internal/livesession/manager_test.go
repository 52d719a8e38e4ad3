package livesession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/registry"
	"github.com/aura-webinar/livestream/internal/stream"
	"github.com/aura-webinar/livestream/internal/stream/streamtest"
	"github.com/aura-webinar/livestream/internal/webinars"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []CallEvent
}

func (p *recordingPublisher) Publish(callID, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := payload.(CallEvent); ok && event == EventCallState {
		p.events = append(p.events, ev)
	}
}

func (p *recordingPublisher) last() (CallEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return CallEvent{}, false
	}
	return p.events[len(p.events)-1], true
}

type fixture struct {
	mgr      *Manager
	reg      *registry.MemoryRepository
	provider *streamtest.Provider
	pub      *recordingPublisher
	webinar  *models.Webinar
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	reg := registry.NewMemoryRepository()
	provider := streamtest.New()
	svc := webinars.NewService(reg, provider, time.UTC, nil)

	d := webinars.NewDraft()
	d.Name, d.Description, d.Date = "Launch", "Intro", "2025-05-12"
	w, err := svc.Create(context.Background(), d, "alice")
	require.NoError(t, err)

	pub := &recordingPublisher{}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour
	}
	mgr := NewManager(provider, reg, pub, opts, nil)
	t.Cleanup(mgr.Shutdown)
	return &fixture{mgr: mgr, reg: reg, provider: provider, pub: pub, webinar: w}
}

func TestOpenUnknownWebinar(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrNotJoinable)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, "webinar not found or stream not configured", s.Error)
	assert.Zero(t, f.mgr.Len())
}

func TestOpenWebinarWithoutStream(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.reg.Put(context.Background(), &models.Webinar{ID: "plain", Name: "No stream", Date: "2025-05-12"}))

	s, err := f.mgr.Open(context.Background(), "plain", "")
	assert.ErrorIs(t, err, ErrNotJoinable)
	assert.Equal(t, StateError, s.State)
	_, joins, _, _ := f.provider.Counts()
	assert.Zero(t, joins)
}

func TestOpenAsViewer(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)

	assert.Equal(t, StateConnected, s.State)
	assert.False(t, s.IsHost)
	assert.True(t, strings.HasPrefix(s.UserID, "viewer-"))
	assert.Equal(t, f.webinar.StreamCallID, s.CallID)
	assert.Equal(t, "test-key", s.APIKey)
	assert.False(t, s.Live)
	assert.Equal(t, 1, s.ParticipantCount)

	claims, err := f.provider.Issuer.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, claims.UserID)
	assert.NotEqual(t, f.webinar.StreamToken, s.Token)
}

func TestOpenAsHost(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, f.webinar.StreamToken)
	require.NoError(t, err)
	assert.True(t, s.IsHost)
	assert.Equal(t, "alice", s.UserID)
	assert.Equal(t, f.webinar.StreamToken, s.Token)
}

func TestHostVisitsShareHostIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	first, err := f.mgr.Open(ctx, f.webinar.ID, f.webinar.StreamToken)
	require.NoError(t, err)
	second, err := f.mgr.Open(ctx, f.webinar.ID, f.webinar.StreamToken)
	require.NoError(t, err)

	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.mgr.Len())
}

func TestOpenHostWithoutHostID(t *testing.T) {
	f := newFixture(t, Options{})
	tok, err := f.provider.IssueToken("legacy-host", 0)
	require.NoError(t, err)
	legacy := *f.webinar
	legacy.ID = "legacy"
	legacy.HostID = ""
	legacy.StreamToken = tok.Value
	require.NoError(t, f.reg.Put(context.Background(), &legacy))

	s, err := f.mgr.Open(context.Background(), "legacy", tok.Value)
	require.NoError(t, err)
	assert.True(t, s.IsHost)
	assert.True(t, strings.HasPrefix(s.UserID, "host-legacy-"))
}

func TestWrongHostTokenJoinsAsViewer(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "not-the-token")
	require.NoError(t, err)
	assert.False(t, s.IsHost)
}

func TestOpenTokenFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.provider.Issuer = stream.NewIssuer("test-key", "", 0)

	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	assert.True(t, errs.IsConfiguration(err))
	assert.Equal(t, StateError, s.State)
	assert.Empty(t, s.Token)
}

func TestOpenJoinFailureDisconnects(t *testing.T) {
	f := newFixture(t, Options{})
	f.provider.JoinErr = &errs.ProviderError{Op: "join call", StatusCode: 403, Message: "denied"}

	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	assert.True(t, errs.IsProvider(err))
	assert.Equal(t, StateError, s.State)
	_, _, _, disconnects := f.provider.Counts()
	assert.Equal(t, 1, disconnects)
	assert.Zero(t, f.mgr.Len())
}

func TestViewerCannotControlBroadcast(t *testing.T) {
	f := newFixture(t, Options{})
	viewer, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)

	_, err = f.mgr.GoLive(context.Background(), viewer.ID)
	assert.ErrorIs(t, err, errs.ErrNotHost)
	_, err = f.mgr.StopLive(context.Background(), viewer.ID)
	assert.ErrorIs(t, err, errs.ErrNotHost)
	assert.False(t, f.provider.Call(stream.CallTypeLivestream, f.webinar.StreamCallID).Live())
}

func TestHostGoLiveAndStop(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	host, err := f.mgr.Open(ctx, f.webinar.ID, f.webinar.StreamToken)
	require.NoError(t, err)
	viewer, err := f.mgr.Open(ctx, f.webinar.ID, "")
	require.NoError(t, err)

	s, err := f.mgr.GoLive(ctx, host.ID)
	require.NoError(t, err)
	assert.True(t, s.Live)

	v, err := f.mgr.Get(viewer.ID)
	require.NoError(t, err)
	assert.True(t, v.Live, "viewers on the same call see the new state")

	ev, ok := f.pub.last()
	require.True(t, ok)
	assert.True(t, ev.Live)
	assert.Equal(t, f.webinar.StreamCallID, ev.CallID)

	s, err = f.mgr.StopLive(ctx, host.ID)
	require.NoError(t, err)
	assert.False(t, s.Live)
}

func TestGoLiveFailureKeepsState(t *testing.T) {
	f := newFixture(t, Options{})
	host, err := f.mgr.Open(context.Background(), f.webinar.ID, f.webinar.StreamToken)
	require.NoError(t, err)
	f.provider.StartErr = &errs.ProviderError{Op: "go live", StatusCode: 500, Message: "boom"}

	s, err := f.mgr.GoLive(context.Background(), host.ID)
	var pe *errs.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.False(t, s.Live)
	assert.Equal(t, StateConnected, s.State)

	again, err := f.mgr.Get(host.ID)
	require.NoError(t, err)
	assert.False(t, again.Live)
}

func TestCloseSwallowsProviderErrors(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)
	f.provider.LeaveErr = errors.New("network down")

	require.NoError(t, f.mgr.Close(context.Background(), s.ID))
	_, _, leaves, disconnects := f.provider.Counts()
	assert.Equal(t, 1, leaves)
	assert.Equal(t, 1, disconnects)

	assert.ErrorIs(t, f.mgr.Close(context.Background(), s.ID), errs.ErrSessionNotFound)
	_, err = f.mgr.Get(s.ID)
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestRefreshReadsProviderState(t *testing.T) {
	f := newFixture(t, Options{})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)
	f.provider.SetParticipants(stream.CallTypeLivestream, s.CallID, 42)

	s, err = f.mgr.Refresh(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, s.ParticipantCount)
}

func TestPollerPicksUpExternalChanges(t *testing.T) {
	f := newFixture(t, Options{PollInterval: 10 * time.Millisecond})
	s, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)

	_, err = f.provider.StartCall(context.Background(), stream.CallTypeLivestream, s.CallID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, err := f.mgr.Get(s.ID)
		return err == nil && snap.Live
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReapClosesIdleSessions(t *testing.T) {
	f := newFixture(t, Options{IdleTimeout: time.Minute})
	now := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)
	f.mgr.now = func() time.Time { return now }

	idle, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)
	active, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	f.mgr.Touch(active.ID)
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, f.mgr.Reap())
	_, err = f.mgr.Get(idle.ID)
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
	_, err = f.mgr.Get(active.ID)
	assert.NoError(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.mgr.Open(context.Background(), f.webinar.ID, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.mgr.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Zero(t, f.mgr.Len())
	_, _, leaves, _ := f.provider.Counts()
	assert.Equal(t, 1, leaves)
}

package realtime

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hub *Hub, id, callID string) *Client {
	return &Client{ID: id, CallID: callID, hub: hub, send: make(chan WSMessage, 4)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return WSMessage{}
	}
}

func TestBroadcastIsScopedToCall(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	a := testClient(hub, "a", "call-1")
	b := testClient(hub, "b", "call-2")
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 1, hub.SubscriberCount("call-1"))

	hub.Publish("call-1", EventCallState, map[string]bool{"live": true})
	msg := receive(t, a)
	assert.Equal(t, EventCallState, msg.Event)
	assert.JSONEq(t, `{"live":true}`, string(msg.Data))
	assert.Empty(t, b.send)

	hub.Unregister(a)
	assert.Zero(t, hub.SubscriberCount("call-1"))
}

type fakeRedis struct {
	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	cancelled []string
	failPub   bool
}

func (f *fakeRedis) PublishCallEvent(callID, event string, payload []byte) error {
	if f.failPub {
		return errors.New("redis down")
	}
	f.mu.Lock()
	h := f.handlers[callID]
	f.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (f *fakeRedis) SubscribeCall(callID string, handler func(string, []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[callID] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, callID)
		f.cancelled = append(f.cancelled, callID)
	}, nil
}

func TestPublishGoesThroughRedisOnce(t *testing.T) {
	rd := &fakeRedis{handlers: map[string]func(string, []byte){}}
	hub := NewHub(nil, rd, rd)
	a := testClient(hub, "a", "call-1")
	hub.Register(a)

	hub.Publish("call-1", EventCallState, map[string]int{"participants": 2})
	msg := receive(t, a)
	assert.JSONEq(t, `{"participants":2}`, string(msg.Data))
	assert.Empty(t, a.send, "delivered exactly once")

	rd.failPub = true
	hub.Publish("call-1", EventCallState, map[string]int{"participants": 3})
	msg = receive(t, a)
	assert.JSONEq(t, `{"participants":3}`, string(msg.Data), "falls back to local delivery")

	hub.Unregister(a)
	assert.Equal(t, []string{"call-1"}, rd.cancelled)
}

type fakeSessions struct {
	mu      sync.Mutex
	touched int
}

func (f *fakeSessions) Subscribe(sessionID string) (string, string, error) {
	if sessionID != "s1" {
		return "", "", errors.New("live session not found")
	}
	return "call-1", "viewer-1", nil
}

func (f *fakeSessions) Touch(string) {
	f.mu.Lock()
	f.touched++
	f.mu.Unlock()
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	sessions := &fakeSessions{}
	r := gin.New()
	r.GET("/ws", ServeWs(hub, sessions, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?session_id=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?session_id=s1", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventViewerCount, msg.Event)

	hub.Publish("call-1", EventCallState, map[string]bool{"live": true})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventCallState, msg.Event)

	require.NoError(t, conn.WriteJSON(WSMessage{Event: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Event)
	var pong map[string]int64
	require.NoError(t, json.Unmarshal(msg.Data, &pong))
	assert.NotZero(t, pong["at"])

	sessions.mu.Lock()
	assert.Equal(t, 1, sessions.touched)
	sessions.mu.Unlock()
}

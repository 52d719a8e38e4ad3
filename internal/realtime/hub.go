// Package realtime pushes call-state events to WebSocket subscribers of each livestream call,
// bridged across instances with Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to subscribers.
const (
	EventCallState   = "call_state"
	EventViewerCount = "viewer_count"
	EventSession     = "session"
)

// Hub maintains call_id -> set of connections and broadcasts messages.
// With Redis configured, publishes go through Redis so every instance delivers them once.
type Hub struct {
	// callID -> map[clientID]*Client
	calls    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per call
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishCallEvent(callID string, event string, payload []byte) error
}

// RedisSubscriber subscribes to call channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeCall(callID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		calls:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a call room. Starts the Redis subscription for the call if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.calls[c.CallID] == nil {
		h.calls[c.CallID] = make(map[string]*Client)
		if h.redisSub != nil {
			callID := c.CallID
			cancel, err := h.redisSub.SubscribeCall(callID, func(event string, payload []byte) {
				h.BroadcastToCall(callID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[callID] = cancel
			} else {
				h.logger.Warn("redis subscribe failed", zap.String("call_id", callID), zap.Error(err))
			}
		}
	}
	h.calls[c.CallID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined call feed", zap.String("client_id", c.ID), zap.String("call_id", c.CallID))
}

// Unregister removes a client from a call room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.calls[c.CallID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.calls, c.CallID)
			if cancel, ok := h.subs[c.CallID]; ok {
				cancel()
				delete(h.subs, c.CallID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left call feed", zap.String("client_id", c.ID), zap.String("call_id", c.CallID))
}

// BroadcastToCall sends a message to all clients of a call (local only). Sends happen under the
// read lock so a client's channel cannot be closed mid-send.
func (h *Hub) BroadcastToCall(callID string, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.calls[callID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every subscriber of the call on every instance. With Redis the
// subscriber callback does the local broadcast, so local clients receive it exactly once.
func (h *Hub) Publish(callID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		err = h.redis.PublishCallEvent(callID, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("redis publish failed, delivering locally", zap.String("call_id", callID), zap.Error(err))
	}
	h.BroadcastToCall(callID, event, json.RawMessage(data))
}

// SubscriberCount returns the number of feed connections for a call on this instance.
func (h *Hub) SubscriberCount(callID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.calls[callID])
}

// SendToClient sends a message to a single client of a call.
func (h *Hub) SendToClient(callID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.calls[callID][clientID]
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

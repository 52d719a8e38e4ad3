package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultChannelPrefix namespaces call feeds; the channel for a call is prefix + call id.
	DefaultChannelPrefix = "call:"
	publishTimeout       = 5 * time.Second
)

// envelope is the message published to Redis for cross-instance broadcast.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub bridges call feeds across instances. One pattern subscription per instance
// carries every call; SubscribeCall only registers a local handler for a call id.
type RedisPubSub struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]map[uint64]func(event string, payload []byte)
	nextID   uint64
}

// NewRedisPubSub creates the bridge. Start must run before events from other instances arrive.
func NewRedisPubSub(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPubSub{
		client:   client,
		prefix:   prefix,
		logger:   logger,
		handlers: make(map[string]map[uint64]func(string, []byte)),
	}
}

// Start subscribes to every call channel and dispatches until ctx ends.
func (r *RedisPubSub) Start(ctx context.Context) error {
	pattern := r.prefix + "*"
	ps := r.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	r.logger.Info("call feed bridge subscribed", zap.String("pattern", pattern))
	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.dispatch(msg.Channel, msg.Payload)
			}
		}
	}()
	return nil
}

// PublishCallEvent publishes an event on the call's channel.
func (r *RedisPubSub) PublishCallEvent(callID string, event string, payload []byte) error {
	body, err := json.Marshal(envelope{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.prefix+callID, body).Err()
}

// SubscribeCall registers handler for events on callID. The returned cancel removes it.
func (r *RedisPubSub) SubscribeCall(callID string, handler func(event string, payload []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	if r.handlers[callID] == nil {
		r.handlers[callID] = make(map[uint64]func(string, []byte))
	}
	r.handlers[callID][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[callID], id)
			if len(r.handlers[callID]) == 0 {
				delete(r.handlers, callID)
			}
		})
	}, nil
}

func (r *RedisPubSub) dispatch(channel, payload string) {
	callID, ok := strings.CutPrefix(channel, r.prefix)
	if !ok || callID == "" {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Debug("dropping malformed call event", zap.String("channel", channel), zap.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]func(string, []byte), 0, len(r.handlers[callID]))
	for _, h := range r.handlers[callID] {
		targets = append(targets, h)
	}
	r.mu.RUnlock()

	for _, h := range targets {
		h(env.Event, env.Data)
	}
}

package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/psds-microservice/live-pk-service/internal/metrics"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"go.uber.org/zap"
)

// Subscriber is one real-time connection. The hub writes frames to Send;
// the connection owner drains it. Send is closed by Drop.
type Subscriber struct {
	ID   string
	Send chan []byte

	closed bool // guarded by FanoutHub.mu
}

// Broadcaster is what the pk manager needs from the hub.
type Broadcaster interface {
	Broadcast(sessionID string, ev model.Event)
	NotifyExternal(ev model.Event)
}

// HubOptions sizes connection buffers.
type HubOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	MaxMessageSize  int64
	NotifyTimeout   time.Duration
}

// FanoutHub keeps subscriber groups per session id and delivers events to them.
type FanoutHub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Subscriber]struct{} // sessionID -> subscribers
	member   map[*Subscriber]map[string]struct{} // subscriber -> sessionIDs
	upgrader websocket.Upgrader
	opts     HubOptions
	notifier Notifier
	inflight sync.WaitGroup
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewFanoutHub creates a hub. notifier may be nil.
func NewFanoutHub(opts HubOptions, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *FanoutHub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 3 * time.Second
	}
	return &FanoutHub{
		groups:   make(map[string]map[*Subscriber]struct{}),
		member:   make(map[*Subscriber]map[string]struct{}),
		opts:     opts,
		notifier: notifier,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			// nil CheckOrigin: cross-origin browsers are refused.
		},
	}
}

// Connect registers a new connection handle with no groups.
func (h *FanoutHub) Connect() *Subscriber {
	sub := &Subscriber{
		ID:   ulid.Make().String(),
		Send: make(chan []byte, h.opts.SendBuffer),
	}
	h.mu.Lock()
	h.member[sub] = make(map[string]struct{})
	h.mu.Unlock()
	return sub
}

// Subscribe adds sub to sessionID's group. Returns false for a dropped handle.
func (h *FanoutHub) Subscribe(sessionID string, sub *Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return false
	}
	if h.groups[sessionID] == nil {
		h.groups[sessionID] = make(map[*Subscriber]struct{})
	}
	h.groups[sessionID][sub] = struct{}{}
	if h.member[sub] == nil {
		h.member[sub] = make(map[string]struct{})
	}
	h.member[sub][sessionID] = struct{}{}
	h.log.Debug("subscriber joined", zap.String("session_id", sessionID), zap.String("subscriber", sub.ID))
	return true
}

// Unsubscribe removes sub from sessionID's group; absent handles are ignored.
func (h *FanoutHub) Unsubscribe(sessionID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID, sub)
}

func (h *FanoutHub) removeLocked(sessionID string, sub *Subscriber) {
	if g, ok := h.groups[sessionID]; ok {
		delete(g, sub)
		if len(g) == 0 {
			delete(h.groups, sessionID)
		}
	}
	if m, ok := h.member[sub]; ok {
		delete(m, sessionID)
	}
}

// Drop prunes sub from every group and closes its Send channel. Safe to call twice.
func (h *FanoutHub) Drop(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	for sessionID := range h.member[sub] {
		h.removeLocked(sessionID, sub)
	}
	delete(h.member, sub)
	sub.closed = true
	close(sub.Send)
	h.log.Debug("subscriber dropped", zap.String("subscriber", sub.ID))
}

// Broadcast delivers ev to every subscriber of sessionID without blocking.
// A full buffer drops the frame for that subscriber only.
func (h *FanoutHub) Broadcast(sessionID string, ev model.Event) {
	raw, err := json.Marshal(model.Wrap(ev))
	if err != nil {
		h.log.Error("marshal event", zap.String("event", ev.EventName()), zap.Error(err))
		return
	}
	h.send(sessionID, raw, ev.EventName())
}

func (h *FanoutHub) send(sessionID string, raw []byte, name string) {
	delivered, dropped := 0, 0
	// Sends happen under the read lock so Drop cannot close a channel mid-send.
	h.mu.RLock()
	for sub := range h.groups[sessionID] {
		select {
		case sub.Send <- raw:
			delivered++
		default:
			dropped++
			h.log.Warn("subscriber send buffer full",
				zap.String("session_id", sessionID),
				zap.String("subscriber", sub.ID),
				zap.String("event", name))
		}
	}
	h.mu.RUnlock()
	h.metrics.Fanout(delivered, dropped)
}

// NotifyExternal sends ev to the external sink in a detached goroutine with a hard timeout.
// Failures are logged and never reach the caller.
func (h *FanoutHub) NotifyExternal(ev model.Event) {
	if h.notifier == nil {
		return
	}
	n := Notification{EventType: ev.EventName(), Payload: ev, SentAt: time.Now().UTC()}
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.NotifyTimeout)
		defer cancel()
		if err := h.notifier.Notify(ctx, n); err != nil {
			h.metrics.NotifyFailed()
			h.log.Warn("external notify failed", zap.String("event", n.EventType), zap.Error(err))
		}
	}()
}

// Drain waits for in-flight external notifications or ctx expiry.
func (h *FanoutHub) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *FanoutHub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// MaxMessageSize is the read limit applied to subscriber connections.
func (h *FanoutHub) MaxMessageSize() int64 { return h.opts.MaxMessageSize }

// GroupSize returns number of subscribers of a session.
func (h *FanoutHub) GroupSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[sessionID])
}

// GroupCount returns number of non-empty groups.
func (h *FanoutHub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

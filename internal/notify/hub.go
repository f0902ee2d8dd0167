// Package notify pushes committed record moves to websocket subscribers of a
// board. Delivery is best effort: a slow subscriber loses events and never
// delays the publisher.
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heartmarshall/qms-backend/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// EventRecordMoved is the event type of a committed move.
	EventRecordMoved = "record.moved"
)

// Event is the JSON message sent to subscribers.
type Event struct {
	Type        string    `json:"type"`
	ProcessID   uuid.UUID `json:"processId"`
	RecordID    uuid.UUID `json:"recordId"`
	FromStateID uuid.UUID `json:"fromStateId"`
	ToStateID   uuid.UUID `json:"toStateId"`
	Position    float64   `json:"position"`
	ActorID     uuid.UUID `json:"actorId"`
	At          time.Time `json:"at"`
}

func eventFrom(e domain.MoveEvent) Event {
	return Event{
		Type:        EventRecordMoved,
		ProcessID:   e.ProcessID,
		RecordID:    e.RecordID,
		FromStateID: e.FromStateID,
		ToStateID:   e.ToStateID,
		Position:    e.Position,
		ActorID:     e.ActorID,
		At:          e.At,
	}
}

// subscriberObserver tracks the number of connected subscribers.
type subscriberObserver interface {
	SubscriberAdded()
	SubscriberRemoved()
}

type noopObserver struct{}

func (noopObserver) SubscriberAdded()   {}
func (noopObserver) SubscriberRemoved() {}

// Subscription receives the events of one board.
type Subscription struct {
	tenantID  uuid.UUID
	processID uuid.UUID
	events    chan Event
	once      sync.Once
}

// Events returns the delivery channel. It is closed on unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Hub fans move events out to board subscribers.
type Hub struct {
	log      *slog.Logger
	observer subscriberObserver
	upgrader websocket.Upgrader
	buffer   int

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates a hub. buffer is the per-subscriber queue length; observer
// may be nil.
func NewHub(log *slog.Logger, observer subscriberObserver, buffer int) *Hub {
	if observer == nil {
		observer = noopObserver{}
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		log:      log.With("service", "notify"),
		observer: observer,
		buffer:   buffer,
		subs:     make(map[*Subscription]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Subscribe registers interest in one process of one tenant. The returned
// function unsubscribes and is safe to call more than once.
func (h *Hub) Subscribe(tenantID, processID uuid.UUID) (*Subscription, func()) {
	sub := &Subscription{
		tenantID:  tenantID,
		processID: processID,
		events:    make(chan Event, h.buffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.observer.SubscriberAdded()

	return sub, func() { h.unsubscribe(sub) }
}

func (h *Hub) unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.events)
		h.mu.Unlock()
		h.observer.SubscriberRemoved()
	})
}

// Publish delivers e to every subscriber of the same tenant and process
// without blocking.
func (h *Hub) Publish(ctx context.Context, e domain.MoveEvent) {
	ev := eventFrom(e)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.tenantID != e.TenantID || sub.processID != e.ProcessID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.log.WarnContext(ctx, "subscriber queue full, event dropped",
				slog.String("process_id", e.ProcessID.String()),
				slog.String("record_id", e.RecordID.String()),
			)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeWS upgrades the request and streams events of the given board until
// the client disconnects or ctx is done. The caller has already authorized
// tenantID for the request.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenantID, processID uuid.UUID) {
	// Subscribed before the handshake completes so no event after it is missed.
	sub, cancel := h.Subscribe(tenantID, processID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go h.readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.DebugContext(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the peer goes away.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

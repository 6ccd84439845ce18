// Package notify fans out "the task store changed" events to every connected
// viewer. Delivery is best effort: a subscriber that cannot keep up loses
// events, and never slows down the others.
package notify

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeHello    = "hello"
	TypeFSChange = "fs-change"
	TypePing     = "ping"
)

// DefaultKeepalive is the interval between ping events.
const DefaultKeepalive = 25 * time.Second

const subscriberBuffer = 16

// Event is one notification. Ts is Unix milliseconds.
type Event struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	Ts   int64  `json:"ts"`
}

// NewEvent stamps an event with the given time.
func NewEvent(typ, path string, now time.Time) Event {
	return Event{Type: typ, Path: path, Ts: now.UnixMilli()}
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ev Event)
}

// Subscription receives events on C until it is unsubscribed.
type Subscription struct {
	C <-chan Event

	ch chan Event
}

// Hub is an in-process broadcast channel.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe detaches sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}

	delete(h.subs, sub)
	close(sub.ch)
}

// Publish delivers ev to every subscriber whose buffer has room.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Len returns the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Keepalive publishes a ping every interval while anyone is subscribed, until
// ctx is done.
func (h *Hub) Keepalive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultKeepalive
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if h.Len() > 0 {
				h.Publish(NewEvent(TypePing, "", now))
			}
		}
	}
}

type fanout []Publisher

func (f fanout) Publish(ev Event) {
	for _, p := range f {
		p.Publish(ev)
	}
}

// Fanout returns a Publisher that forwards to each of pubs in order.
// Nil entries are skipped.
func Fanout(pubs ...Publisher) Publisher {
	out := make(fanout, 0, len(pubs))

	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}

	return out
}

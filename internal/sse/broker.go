// Package sse streams saved-view and record changes to clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/flowcrm/internal/models"
)

// Event is one SSE message. Scope limits delivery to clients subscribed to
// that view type; an empty Scope reaches every client.
type Event struct {
	Type  string          `json:"type"`
	Scope models.ViewType `json:"-"`
	Data  any             `json:"data"`
}

// ViewEventData is the payload of view.* events.
type ViewEventData struct {
	ID   int64           `json:"id"`
	Type models.ViewType `json:"type"`
	Name string          `json:"name"`
}

type subscription struct {
	ch    chan []byte
	scope models.ViewType
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the interval of comment pings sent to idle streams.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

// Broker fans view and record events out to SSE clients.
//
// A single loop goroutine owns the client set, the event sequence and the
// per-scope stale throttle. Public methods talk to it over channels.
type Broker struct {
	staleMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. staleThrottle is the minimum gap between two
// results.stale events of the same scope.
func NewBroker(staleThrottle time.Duration, opts ...Option) *Broker {
	if staleThrottle <= 0 {
		staleThrottle = 2 * time.Second
	}
	b := &Broker{
		staleMin:      staleThrottle,
		keepAlive:     15 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func reaches(event, client models.ViewType) bool {
	return event == "" || client == "" || event == client
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]models.ViewType)
	lastStale := make(map[models.ViewType]time.Time)
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, scope := range clients {
			if !reaches(event.Scope, scope) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.scope

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.changeCh:
			broadcast(event)

			// Result sets in this scope may have changed.
			now := time.Now()
			if now.Sub(lastStale[event.Scope]) >= b.staleMin {
				lastStale[event.Scope] = now
				broadcast(Event{
					Type:  "results.stale",
					Scope: event.Scope,
					Data:  map[string]models.ViewType{"type": event.Scope},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for events of scope (empty for all) and
// returns its channel.
func (b *Broker) Subscribe(scope models.ViewType) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, scope: scope}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event as is, without a results.stale follow-up.
func (b *Broker) Publish(event Event) {
	b.send(b.publishCh, event)
}

// PublishViewEvent publishes view.<kind> scoped to the view's type.
func (b *Broker) PublishViewEvent(kind string, v models.SavedView) {
	b.send(b.changeCh, Event{
		Type:  "view." + kind,
		Scope: v.Type,
		Data:  ViewEventData{ID: v.ID, Type: v.Type, Name: v.Name},
	})
}

// PublishRecordsEvent publishes records.<kind> for the seed file at path
// to every client.
func (b *Broker) PublishRecordsEvent(kind, path string) {
	b.send(b.changeCh, Event{Type: "records." + kind, Data: map[string]string{"path": path}})
}

func (b *Broker) send(ch chan Event, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case ch <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint (GET /api/events[?type=contacts|deals]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope := models.ViewType(r.URL.Query().Get("type"))
	if scope != "" && !scope.Valid() {
		http.Error(w, "unknown view type", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 3000\n\n"))
	flusher.Flush()

	ch := b.Subscribe(scope)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/models"
)

// Event represents an SSE event to broadcast. A non-zero ID is sent as the
// SSE id field so clients can resume with Last-Event-ID.
type Event struct {
	ID   uint64      `json:"-"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// History returns the change records after a sequence number.
type History func(since uint64) []feed.Entry

// Event types emitted for change-feed records.
const (
	TypeDocumentUpdated = "document.updated"
	TypeDocumentRemoved = "document.removed"
	TypeDocumentFailed  = "document.failed"
	TypeDocumentHealed  = "document.recovered"
	TypeMetadataUpdated = "metadata.updated"
)

// DocumentChange is the payload of document.updated and document.removed.
type DocumentChange struct {
	Seq        uint64   `json:"seq"`
	DocumentID string   `json:"document_id"`
	Path       string   `json:"path"`
	New        []string `json:"new"`
	Updated    []string `json:"updated"`
	Deleted    []string `json:"deleted"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + metadata throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	metadataMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	feedEventCh   chan feed.Event
	countReqCh    chan chan int

	history History

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given metadata.updated throttle interval.
func NewBroker(metadataThrottle time.Duration) *Broker {
	if metadataThrottle <= 0 {
		metadataThrottle = 2 * time.Second
	}

	b := &Broker{
		metadataMin:   metadataThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		feedEventCh:   make(chan feed.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastMetadata time.Time

	broadcast := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.feedEventCh:
			switch {
			case ev.Update != nil:
				broadcast(documentEvent(ev.Seq, ev.Update))
				// Tags and categories only move when documents do.
				now := time.Now()
				if now.Sub(lastMetadata) >= b.metadataMin {
					lastMetadata = now
					broadcast(Event{Type: TypeMetadataUpdated, Data: map[string]string{}})
				}
			case ev.Failure != nil:
				if ev.Failure.Message == "" {
					broadcast(Event{Type: TypeDocumentHealed, Data: ev.Failure})
				} else {
					broadcast(Event{Type: TypeDocumentFailed, Data: ev.Failure})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func documentEvent(seq uint64, u *models.UpdateInfo) Event {
	typ := TypeDocumentUpdated
	if u.Removed {
		typ = TypeDocumentRemoved
	}
	return Event{ID: seq, Type: typ, Data: DocumentChange{
		Seq:        seq,
		DocumentID: u.DocumentID,
		Path:       u.Path,
		New:        u.New,
		Updated:    u.Updated,
		Deleted:    u.Deleted,
	}}
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if event.ID > 0 {
		fmt.Fprintf(&buf, "id: %d\n", event.ID)
	}
	fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", event.Type, payload)
	return buf.Bytes(), nil
}

// frameID returns the id of an encoded frame, or 0 when it has none.
func frameID(msg []byte) uint64 {
	rest, ok := bytes.CutPrefix(msg, []byte("id: "))
	if !ok {
		return 0
	}
	line, _, _ := bytes.Cut(rest, []byte("\n"))
	id, _ := strconv.ParseUint(string(line), 10, 64)
	return id
}

// WithHistory lets reconnecting clients replay document events they missed.
// It must be called before the broker serves requests.
func (b *Broker) WithHistory(h History) *Broker {
	b.history = h
	return b
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFeedEvent translates a change-feed event into SSE events. Document
// updates also produce a throttled metadata.updated.
func (b *Broker) PublishFeedEvent(ev feed.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.feedEventCh <- ev:
	case <-b.stopped:
	}
}

// Forward publishes every event from a feed subscription until ctx is done
// or the subscription is cancelled.
func (b *Broker) Forward(ctx context.Context, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.PublishFeedEvent(ev)
		}
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Replay after subscribing so nothing falls between the two; live frames
	// already replayed are skipped below. Records evicted from history are lost.
	var replayed uint64
	if last, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil && b.history != nil {
		for _, e := range b.history(last) {
			msg, err := encode(documentEvent(e.Seq, &e.Update))
			if err != nil {
				continue
			}
			_, _ = w.Write(msg)
			replayed = e.Seq
		}
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if id := frameID(msg); id != 0 && id <= replayed {
				continue
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

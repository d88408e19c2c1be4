package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/trainwatch/internal/events"
)

// Feed fans job lifecycle events out to server-sent-event subscribers.
// Slow subscribers miss events rather than block publishers.
type Feed struct {
	mu        sync.Mutex
	clients   map[chan events.Event]struct{}
	keepalive time.Duration
}

func NewFeed() *Feed {
	return &Feed{
		clients:   make(map[chan events.Event]struct{}),
		keepalive: 30 * time.Second,
	}
}

// Broadcast implements events.Broadcaster.
func (f *Feed) Broadcast(e events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

func (f *Feed) addClient(ch chan events.Event) {
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
}

func (f *Feed) removeClient(ch chan events.Event) {
	f.mu.Lock()
	delete(f.clients, ch)
	f.mu.Unlock()
}

// Subscribers reports the number of connected clients.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan events.Event, 16)
	f.addClient(ch)
	defer f.removeClient(ch)

	// An initial comment lets clients know the stream is live.
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(f.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, flusher, e)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, e events.Event) {
	data, _ := json.Marshal(e)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	f.Flush()
}

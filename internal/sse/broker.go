// Package sse streams lifecycle events to Server-Sent Events clients. Each
// client only receives events its caller is allowed to observe.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
)

const (
	// FeedUpdated tells clients to refetch artifact and community lists.
	FeedUpdated = "feed.updated"

	heartbeat = 30 * time.Second
	bufSize   = 64
)

var feedFrame = []byte("event: " + FeedUpdated + "\ndata: {}\n\n")

// frame renders one SSE message carrying the record id of e.
func frame(e events.Event) []byte {
	data, _ := json.Marshal(struct {
		ID string `json:"id"`
	}{e.ID})
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Kind, data))
}

// subscriber is owned by the broker loop once it has joined.
type subscriber struct {
	viewer   authz.Principal
	out      chan []byte
	lastFeed time.Time
}

// send drops the frame when the client is not keeping up.
func (s *subscriber) send(msg []byte) {
	select {
	case s.out <- msg:
	default:
	}
}

// Subscription is one client's filtered event stream. C is closed when the
// subscription ends or the broker shuts down.
type Subscription struct {
	C <-chan []byte
	s *subscriber
}

// Broker fans committed domain events out to subscribers. A single loop
// goroutine owns the subscriber set; callers talk to it over channels.
type Broker struct {
	feedEvery time.Duration

	join    chan *subscriber
	leave   chan *subscriber
	notify  chan events.Event
	count   chan chan int
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewBroker starts a broker. Each subscriber receives at most one
// feed.updated per feedEvery.
func NewBroker(feedEvery time.Duration) *Broker {
	if feedEvery <= 0 {
		feedEvery = 2 * time.Second
	}
	b := &Broker{
		feedEvery: feedEvery,
		join:      make(chan *subscriber),
		leave:     make(chan *subscriber),
		notify:    make(chan events.Event, 256),
		count:     make(chan chan int),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	subs := make(map[*subscriber]struct{})

	for {
		select {
		case <-b.done:
			for s := range subs {
				close(s.out)
			}
			return

		case s := <-b.join:
			subs[s] = struct{}{}

		case s := <-b.leave:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.out)
			}

		case e := <-b.notify:
			msg := frame(e)
			now := time.Now()
			for s := range subs {
				if !e.VisibleTo(s.viewer) {
					continue
				}
				s.send(msg)
				if now.Sub(s.lastFeed) >= b.feedEvery {
					s.lastFeed = now
					s.send(feedFrame)
				}
			}

		case reply := <-b.count:
			reply <- len(subs)
		}
	}
}

// Close stops the broker and ends every subscription. It is safe to call
// more than once.
func (b *Broker) Close() {
	b.once.Do(func() { close(b.done) })
	<-b.stopped
}

// Subscribe registers a client acting as viewer.
func (b *Broker) Subscribe(viewer authz.Principal) *Subscription {
	s := &subscriber{viewer: viewer, out: make(chan []byte, bufSize)}
	select {
	case b.join <- s:
	case <-b.stopped:
		close(s.out)
	}
	return &Subscription{C: s.out, s: s}
}

// Unsubscribe removes the client and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	select {
	case b.leave <- sub.s:
	case <-b.stopped:
	}
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
		return <-reply
	case <-b.stopped:
		return 0
	}
}

// Notify queues e for delivery. Its signature matches events.Callback.
func (b *Broker) Notify(e events.Event) {
	select {
	case b.notify <- e:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to the caller attached to the request context.
// Anonymous callers only see public events.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(authz.FromContext(r.Context()))
	defer b.Unsubscribe(sub)

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

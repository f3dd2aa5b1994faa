package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber is one live consumer of a session's event stream. Events queue
// in arrival order until the consumer drains them with Next.
type Subscriber struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

func newSubscriber() *Subscriber {
	return &Subscriber{wake: make(chan struct{}, 1)}
}

func (s *Subscriber) push(evt Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	evt := s.queue[0]
	s.queue = s.queue[1:]
	return evt, true
}

// Next returns the next queued event, blocking until one arrives or the
// context ends. The ok result is false only when the context ended first.
func (s *Subscriber) Next(ctx context.Context) (Event, bool) {
	for {
		if evt, ok := s.pop(); ok {
			return evt, true
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Broker maintains the per-session subscriber sets.
type Broker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscriber]struct{}
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{subs: make(map[uuid.UUID]map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber for the session and immediately
// queues a synthetic connected event on it.
func (b *Broker) Subscribe(sessionID uuid.UUID) *Subscriber {
	sub := newSubscriber()
	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	sub.push(Event{
		Name:      EventConnected,
		SessionID: sessionID.String(),
		Timestamp: time.Now().UTC(),
	})
	return sub
}

// Unsubscribe removes the subscriber; calling it twice is harmless.
func (b *Broker) Unsubscribe(sessionID uuid.UUID, sub *Subscriber) {
	b.mu.Lock()
	if set, ok := b.subs[sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sessionID)
		}
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber registered for the session
// at call time. Subscribers registered afterwards do not receive it.
func (b *Broker) Publish(sessionID uuid.UUID, evt Event) {
	if evt.SessionID == "" {
		evt.SessionID = sessionID.String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	targets := make([]*Subscriber, 0, len(b.subs[sessionID]))
	for sub := range b.subs[sessionID] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.push(evt)
	}
}

// SubscriberCount reports how many subscribers a session currently has.
func (b *Broker) SubscriberCount(sessionID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

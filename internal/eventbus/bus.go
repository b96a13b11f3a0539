// Package eventbus is the asynchronous notification fabric between the
// campaign engine and its subscribers (persistence, notification, dashboard).
// It is pure transport: the bus holds no campaign state.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"wyckoff/internal/logger"
)

// Handler consumes one event. Handlers run on the subscriber's own goroutine;
// a panicking handler is isolated and reported, it never reaches the
// publisher or other subscribers.
type Handler func(Event)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription struct {
	ID   string
	Type EventType
}

type subscriber struct {
	id      string
	handler Handler

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// Bus fans events out to subscribers. Delivery is asynchronous relative to
// Publish: each subscriber drains its own unbounded FIFO queue, so the
// ingestion path never blocks on subscriber execution and every subscriber
// sees events for the same campaign in emission order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType]map[string]*subscriber
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[EventType]map[string]*subscriber)}
}

// Subscribe registers a handler for an event type (EventAny for all types)
// and starts its delivery goroutine.
func (b *Bus) Subscribe(t EventType, h Handler) (Subscription, error) {
	if h == nil {
		return Subscription{}, fmt.Errorf("eventbus: nil handler")
	}
	s := &subscriber{
		id:      uuid.NewString(),
		handler: h,
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Subscription{}, fmt.Errorf("eventbus: bus is closed")
	}
	if b.subs[t] == nil {
		b.subs[t] = make(map[string]*subscriber)
	}
	b.subs[t][s.id] = s
	b.mu.Unlock()

	go s.run()
	return Subscription{ID: s.id, Type: t}, nil
}

// Unsubscribe removes the handler and stops its delivery goroutine after the
// already-queued events have been delivered.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	s, ok := b.subs[sub.Type][sub.ID]
	if ok {
		delete(b.subs[sub.Type], sub.ID)
	}
	b.mu.Unlock()
	if ok {
		close(s.stop)
		<-s.done
	}
}

// Publish enqueues the event for every matching subscriber and returns
// without waiting for any handler.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		logger.Warnf("eventbus: publish on closed bus dropped (type=%s)", evt.Type)
		return
	}
	for _, s := range b.subs[evt.Type] {
		s.enqueue(evt)
	}
	if evt.Type != EventAny {
		for _, s := range b.subs[EventAny] {
			s.enqueue(evt)
		}
	}
}

// Close stops accepting events and waits for subscribers to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscriber
	for t, m := range b.subs {
		for id, s := range m {
			all = append(all, s)
			delete(m, id)
		}
		delete(b.subs, t)
	}
	b.mu.Unlock()

	for _, s := range all {
		close(s.stop)
		<-s.done
	}
}

func (s *subscriber) enqueue(evt Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		select {
		case <-s.notify:
			s.drain()
		case <-s.stop:
			// Deliver whatever was queued before the stop, then exit.
			s.drain()
			return
		}
	}
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, evt := range batch {
			s.deliver(evt)
		}
	}
}

func (s *subscriber) deliver(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("eventbus: handler %s panicked on %s: %v", s.id, evt.Type, r)
		}
	}()
	s.handler(evt)
}

// Package broker implements the topic-based publish/subscribe relay behind
// subscriptions. Publishing an event fans it out to every active subscriber of
// the topic; each subscriber owns a bounded delivery queue so one slow consumer
// never delays the publisher or its peers.
//
// Backpressure policy: DROP-OLDEST. When a subscriber's queue is full the
// oldest undelivered event is discarded to make room for the new one. Drops are
// counted per subscriber and reported through the optional drop handler.
package broker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber delivery queue size used when
// WithBuffer is not given.
const DefaultBuffer = 16

// State is a subscriber's lifecycle position.
type State int32

const (
	// StateCreated: registered but not yet delivering.
	StateCreated State = iota
	// StateActive: receiving published events.
	StateActive
	// StateDraining: disconnect signaled; buffered events are being discarded
	// rather than delivered late.
	StateDraining
	// StateClosed: unregistered, channel slot released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "closed"
	}
}

// DropHandler observes queue-overflow drops, keyed by topic and subscriber ID.
type DropHandler func(topic, subscriberID string)

// Broker routes published events to subscribers by topic. The subscriber table
// is the only structure mutated by unrelated flows (subscribe, publish,
// disconnect) and is guarded by one RWMutex.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	onDrop DropHandler
}

type Option func(*Broker)

// WithDropHandler installs fn as the overflow observer.
func WithDropHandler(fn DropHandler) Option {
	return func(b *Broker) { b.onDrop = fn }
}

func New(opts ...Option) *Broker {
	b := &Broker{topics: make(map[string]map[*Subscriber]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber on topic and activates it. The returned
// subscriber satisfies schema.EventStream.
func (b *Broker) Subscribe(topic string, opts ...SubscribeOption) *Subscriber {
	cfg := subscribeConfig{buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	sub := &Subscriber{
		id:     uuid.NewString(),
		topic:  topic,
		broker: b,
		ch:     make(chan any, cfg.buffer),
	}
	sub.state.Store(int32(StateCreated))

	b.mu.Lock()
	set := b.topics[topic]
	if set == nil {
		set = make(map[*Subscriber]struct{})
		b.topics[topic] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	sub.state.Store(int32(StateActive))
	return sub
}

type subscribeConfig struct {
	buffer int
}

type SubscribeOption func(*subscribeConfig)

// WithBuffer sets the delivery queue capacity. Values below 1 fall back to 1.
func WithBuffer(n int) SubscribeOption {
	return func(cfg *subscribeConfig) {
		if n < 1 {
			n = 1
		}
		cfg.buffer = n
	}
}

// Publish broadcasts payload to every active subscriber of topic. It never
// blocks on a full subscriber queue: the oldest buffered event is dropped
// instead (drop-oldest), and other subscribers are unaffected.
func (b *Broker) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.State() != StateActive {
			continue
		}
		if !sub.offer(payload) && b.onDrop != nil {
			b.onDrop(topic, sub.id)
		}
	}
}

// SubscriberCount reports the number of registered subscribers on topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.topics[sub.topic]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.topics, sub.topic)
	}
}

// Subscriber is one registration on a topic. It is handed to the executor as
// the subscription field's event stream.
type Subscriber struct {
	id     string
	topic  string
	broker *Broker
	ch     chan any

	state     atomic.Int32
	dropped   atomic.Int64
	closeOnce sync.Once
	sendMu    sync.Mutex
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string { return s.id }

// Topic returns the routing key this subscriber listens on.
func (s *Subscriber) Topic() string { return s.topic }

// State returns the current lifecycle state.
func (s *Subscriber) State() State { return State(s.state.Load()) }

// Dropped returns how many events were discarded due to queue overflow.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Events yields delivered payloads. The channel is closed by Close.
func (s *Subscriber) Events() <-chan any { return s.ch }

// offer enqueues payload, evicting the oldest buffered event when the queue is
// full. Returns false when an eviction happened.
func (s *Subscriber) offer(payload any) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.State() != StateActive {
		return true
	}
	select {
	case s.ch <- payload:
		return true
	default:
	}
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- payload:
	default:
	}
	return false
}

// Drain transitions the subscriber out of delivery and discards everything
// still buffered. Called when the transport signals disconnect; buffered
// events must not be delivered late.
func (s *Subscriber) Drain() {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateDraining)) {
		return
	}
	// sendMu excludes concurrent offers so the discard loop terminates.
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// Close drains, unregisters the subscriber, and closes the event channel.
// Closing one subscriber never affects the broker or other subscribers.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.Drain()
		s.state.Store(int32(StateClosed))
		s.broker.remove(s)
		s.sendMu.Lock()
		close(s.ch)
		s.sendMu.Unlock()
	})
}

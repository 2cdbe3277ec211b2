package engine

import (
	"sync"
	"time"

	"github.com/hupe1980/agentchat/core"
)

// Bus fans conversation events out to subscribers.
//
// Delivery guarantees:
//   - every subscriber sees events in publish order, stamped with a
//     monotonically increasing Seq
//   - a slow subscriber never blocks Publish or other subscribers; its
//     pending events are queued without limit
//   - nothing is dropped while a subscription is open
//
// Each subscription owns one goroutine that ends when the subscription is
// cancelled or the bus is closed.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	seq    uint64
	closed bool
}

type subscriber struct {
	ch       chan core.Event
	mu       sync.Mutex
	queue    []core.Event
	draining bool
	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe returns a channel receiving every event published from now on
// and a cancel func. Cancelling closes the channel; pending events are
// discarded. Subscribing to a closed bus returns a closed channel.
func (b *Bus) Subscribe() (<-chan core.Event, func()) {
	s := &subscriber{
		ch:     make(chan core.Event),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.run()

	return s.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.cancel()
	}
}

// Publish stamps ev with the next sequence number and timestamp (if unset)
// and queues it for every subscriber. It returns the stamped event.
func (b *Bus) Publish(ev core.Event) core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev.Seq = b.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if b.closed {
		return ev
	}
	for _, s := range b.subs {
		s.enqueue(ev)
	}
	return ev
}

// Close delivers what is already queued and then closes every subscription
// channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.drain()
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *subscriber) enqueue(ev core.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *subscriber) run() {
	defer close(s.done)
	defer close(s.ch)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			draining := s.draining
			s.mu.Unlock()
			if draining {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = core.Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.stop:
			return
		}
	}
}

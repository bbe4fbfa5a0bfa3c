// Package bus implements the Event Bus: fan-out of typed events to N
// subscribers with a bounded history ring, grounded on
// jobs.Store.Subscribe/PublishEvent
// (services/runner/internal/jobs/store.go) generalized from a
// per-run sync.Map of channels to a single in-process bus per Run.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Filter optionally restricts which events a subscription receives.
// A nil Filter receives everything.
type Filter func(Event) bool

// Subscription is a handle returned by Subscribe. Events arrive on
// C in publish order (FIFO per subscriber). Overflow drops the oldest
// queued event, queues one subscriber_lagged event in its place and
// does not deliver the event that overflowed, so a slow subscriber can
// never stall the publisher.
type Subscription struct {
	id     uint64
	C      <-chan Event
	bus    *Bus
	closed *sync.Once
}

// Unsubscribe releases the subscription. Idempotent: in-flight
// deliveries already queued may still arrive and must be ignored by
// the consumer.
func (s *Subscription) Unsubscribe() {
	s.closed.Do(func() {
		s.bus.remove(s.id)
	})
}

type subscriber struct {
	id     uint64
	ch     chan Event
	filter Filter
	closed atomic.Bool
}

// Bus is a single-process, per-Run event fan-out with a bounded
// history ring.
type Bus struct {
	mu              sync.Mutex
	subs            map[uint64]*subscriber
	nextID          uint64
	history         []Event
	historyCap      int
	historyStart    int // index of oldest entry if ring has wrapped
	queueDepth      int
	clock           func() time.Time
}

const defaultHistoryCap = 1024
const defaultQueueDepth = 256

// New creates a Bus with the given history capacity and per-subscriber
// queue depth. Zero values fall back to spec defaults (1024, 256).
func New(historyCap, queueDepth int) *Bus {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Bus{
		subs:       map[uint64]*subscriber{},
		historyCap: historyCap,
		queueDepth: queueDepth,
		clock:      time.Now,
	}
}

// Subscribe returns a Subscription whose channel receives every event
// published after this call, in publish order. filter may be nil.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, ch: make(chan Event, b.queueDepth), filter: filter}
	b.subs[id] = sub

	return &Subscription{id: id, C: sub.ch, bus: b, closed: &sync.Once{}}
}

// remove unsubscribes id. It does not close the channel: deliver runs
// outside b.mu, so a Publish already holding a reference to this
// subscriber could be mid-send concurrently (Unsubscribe from a
// gateway session's deferred cleanup racing the control task's
// Publish is the normal case). Marking closed and dropping the map
// entry is enough; the channel is unreachable after this and GC
// reclaims it once deliver's goroutine lets go of its reference.
func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		sub.closed.Store(true)
	}
}

// Publish fans an event out to every subscriber. It never blocks on a
// slow subscriber: a full queue drops the oldest queued event for
// that subscriber and a subscriber_lagged event naming the incoming
// event's type is enqueued in its place, delivered only to that
// subscriber; the incoming event itself is not delivered to it.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = b.clock().UnixMilli()
	}

	b.mu.Lock()
	b.appendHistory(evt)
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(evt) {
			continue
		}
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s *subscriber, evt Event) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- evt:
		return
	default:
	}
	// Overflow: drop the oldest queued event for this subscriber only,
	// then emit a diagnostic in its place.
	select {
	case <-s.ch:
	default:
	}
	lag := Event{Type: EventSubscriberLag, Timestamp: b.clock().UnixMilli(), Data: map[string]any{"dropped": evt.Type}}
	select {
	case s.ch <- lag:
	default:
	}
}

func (b *Bus) appendHistory(evt Event) {
	if len(b.history) < b.historyCap {
		b.history = append(b.history, evt)
		return
	}
	// ring behavior: overwrite oldest slot
	b.history[b.historyStart] = evt
	b.historyStart = (b.historyStart + 1) % b.historyCap
}

// History returns up to limit of the most recently published events,
// in chronological order. limit <= 0 means "all retained history".
func (b *Bus) History(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := make([]Event, len(b.history))
	if len(b.history) < b.historyCap {
		copy(ordered, b.history)
	} else {
		copy(ordered, b.history[b.historyStart:])
		copy(ordered[b.historyCap-b.historyStart:], b.history[:b.historyStart])
	}

	if limit > 0 && limit < len(ordered) {
		return ordered[len(ordered)-limit:]
	}
	return ordered
}

// SubscriberCount reports the current number of live subscriptions,
// for diagnostics/tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

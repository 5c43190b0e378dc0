// Package sse fans file change events out to Server-Sent Events clients.
package sse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/starford/fileviewer/internal/metrics"
	"github.com/starford/fileviewer/internal/models"
)

const (
	// DefaultQueueSize is the per-subscriber queue capacity.
	DefaultQueueSize = 10
	// DefaultHeartbeat is the idle window after which a heartbeat is produced.
	DefaultHeartbeat = 30 * time.Second
)

// ErrClosed is returned by Subscription.Next once the subscription has been
// removed, either by Unsubscribe, by Close, or because its queue overflowed.
var ErrClosed = errors.New("sse: subscription closed")

// Message is one item read from a subscription: a change event or a heartbeat.
type Message struct {
	Change    models.ChangeEvent
	Heartbeat bool
}

// Subscription is a bounded queue of change events owned by one client.
type Subscription struct {
	ch        chan models.ChangeEvent
	heartbeat time.Duration
}

// Next blocks until an event arrives, the heartbeat window elapses, the
// subscription is closed, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	timer := time.NewTimer(s.heartbeat)
	defer timer.Stop()

	select {
	case ev, ok := <-s.ch:
		if !ok {
			return Message{}, ErrClosed
		}
		return Message{Change: ev}, nil
	case <-timer.C:
		return Message{Heartbeat: true}, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Broadcaster keeps the set of live subscriptions. All registry mutation
// happens under mu; sends never block.
type Broadcaster struct {
	queueSize int
	heartbeat time.Duration

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBroadcaster creates a broadcaster. Non-positive arguments fall back to
// DefaultQueueSize and DefaultHeartbeat.
func NewBroadcaster(queueSize int, heartbeat time.Duration) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Broadcaster{
		queueSize: queueSize,
		heartbeat: heartbeat,
		subs:      make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription. After Close it returns a
// subscription that is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		ch:        make(chan models.ChangeEvent, b.queueSize),
		heartbeat: b.heartbeat,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.SetSSESubscribers(n)
	return s
}

// Unsubscribe removes s. Removing an unknown or already dropped subscription
// does nothing.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, s)
	close(s.ch)
	n := len(b.subs)
	b.mu.Unlock()

	metrics.SetSSESubscribers(n)
}

// Broadcast offers ev to every subscription without blocking and returns the
// number of queues that accepted it. A subscription whose queue is full is
// removed and closed in the same call.
func (b *Broadcaster) Broadcast(ev models.ChangeEvent) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}

	delivered, dropped := 0, 0
	for s := range b.subs {
		select {
		case s.ch <- ev:
			delivered++
		default:
			delete(b.subs, s)
			close(s.ch)
			dropped++
		}
	}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.RecordBroadcast(ev.Type)
	if dropped > 0 {
		metrics.RecordDroppedSubscribers(dropped)
		metrics.SetSSESubscribers(n)
	}
	return delivered
}

// Count returns the number of registered subscriptions.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription. Later broadcasts are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	metrics.SetSSESubscribers(0)
}

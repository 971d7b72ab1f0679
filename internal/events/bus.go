// Package events provides a typed publish/subscribe bus for task
// execution notifications.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// maxAsyncPublishes bounds the number of concurrently running async handlers.
const maxAsyncPublishes = 100

type subscription struct {
	id string
	fn func(Event)
}

// Bus dispatches events to subscribers. Publish is synchronous; PublishAsync
// hands the event to a bounded pool of goroutines. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]subscription
	allHandlers []subscription

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		handlers:    make(map[Type][]subscription),
		allHandlers: make([]subscription, 0),
		sem:         make(chan struct{}, maxAsyncPublishes),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for one event type and returns its
// subscription id.
func (b *Bus) Subscribe(t Type, fn func(Event)) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.handlers[t] = append(b.handlers[t], subscription{id: id, fn: fn})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(fn func(Event)) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.allHandlers = append(b.allHandlers, subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes a subscription by id. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	for i, sub := range b.allHandlers {
		if sub.id == id {
			b.allHandlers = append(b.allHandlers[:i], b.allHandlers[i+1:]...)
			return
		}
	}
}

// HasSubscribers reports whether any handler would receive events of type t.
func (b *Bus) HasSubscribers(t Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t]) > 0 || len(b.allHandlers) > 0
}

// Publish converts a typed event and dispatches it synchronously.
func (b *Bus) Publish(e Eventer) {
	b.PublishRaw(e.ToEvent())
}

// PublishRaw dispatches an event to matching handlers in the caller's
// goroutine. Handlers run outside the bus lock, so they may subscribe or
// unsubscribe freely.
func (b *Bus) PublishRaw(ev Event) {
	b.mu.RLock()
	targets := make([]func(Event), 0, len(b.handlers[ev.Type])+len(b.allHandlers))
	for _, sub := range b.handlers[ev.Type] {
		targets = append(targets, sub.fn)
	}
	for _, sub := range b.allHandlers {
		targets = append(targets, sub.fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// PublishAsync converts a typed event and dispatches it asynchronously.
func (b *Bus) PublishAsync(e Eventer) {
	b.PublishRawAsync(e.ToEvent())
}

// PublishRawAsync dispatches the event from a goroutine, limited by the
// async semaphore. Events still waiting for a slot when Shutdown runs are
// dropped.
func (b *Bus) PublishRawAsync(ev Event) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.sem <- struct{}{}:
			defer func() { <-b.sem }()
			b.PublishRaw(ev)
		case <-b.ctx.Done():
		}
	}()
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type][]subscription)
	b.allHandlers = make([]subscription, 0)
}

// Shutdown stops accepting queued async work and waits for running
// handlers to finish.
func (b *Bus) Shutdown() {
	b.cancel()
	b.wg.Wait()
}

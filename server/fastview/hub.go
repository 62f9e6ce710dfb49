package fastview

import (
	"sync"
)

// Hub fans a single update stream out to a changing set of subscribers, one per
// connected page. Each subscriber buffers a single item: an update for a subscriber
// that has not taken the previous one is folded into it with merge, so one slow
// page never blocks the stream or the other pages.
type Hub[T any] struct {
	mu    sync.Mutex
	subs  map[chan T]struct{}
	merge func(older, newer T) T
}

// NewHub returns a hub folding pending updates with merge. A nil merge keeps only
// the newest, which suits items that each describe the whole state.
func NewHub[T any](merge func(older, newer T) T) *Hub[T] {
	if merge == nil {
		merge = func(_, newer T) T { return newer }
	}
	return &Hub[T]{
		subs:  map[chan T]struct{}{},
		merge: merge,
	}
}

// Run forwards every item of source to the current subscribers until source is
// closed or done is. Subscriber channels are closed when Run returns.
func (hub *Hub[T]) Run(done <-chan struct{}, source <-chan T) {
	defer hub.closeAll()

	for {
		select {
		case <-done:
			return
		case item, ok := <-source:
			if !ok {
				return
			}
			hub.publish(item)
		}
	}
}

func (hub *Hub[T]) publish(item T) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for sub := range hub.subs {
		// Only publish holds the lock while sending, so after a drain the send cannot block.
		next := item
		select {
		case older := <-sub:
			next = hub.merge(older, item)
		default:
		}
		sub <- next
	}
}

// Subscribe returns a channel of updates and the func that ends the subscription.
// The channel is not closed by unsubscribe, only by Run returning.
func (hub *Hub[T]) Subscribe() (updates <-chan T, unsubscribe func()) {
	sub := make(chan T, 1)

	hub.mu.Lock()
	if hub.subs != nil {
		hub.subs[sub] = struct{}{}
	} else {
		close(sub)
	}
	hub.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			hub.mu.Lock()
			defer hub.mu.Unlock()
			delete(hub.subs, sub)
		})
	}
}

// Len returns the number of current subscribers.
func (hub *Hub[T]) Len() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

func (hub *Hub[T]) closeAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for sub := range hub.subs {
		close(sub)
	}
	// A nil map marks the hub as stopped; late subscribers get a closed channel.
	hub.subs = nil
}

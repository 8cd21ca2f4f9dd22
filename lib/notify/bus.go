// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify provides an in-process fan-out notification bus.
//
// A [Bus] delivers every published value to every current subscriber,
// in subscription order, on the publishing goroutine. It replaces
// ambient process-wide event dispatch with an explicit object that is
// created at startup, handed to producers and consumers, and whose
// subscriptions are released through the function returned by
// [Bus.Subscribe]. There is no queue: a slow subscriber slows the
// publisher, and subscribers that need asynchrony should hand off to
// their own goroutine.
package notify

import "sync"

// Bus is a fan-out publish/subscribe channel for values of type T.
// The zero value is ready to use. A Bus must not be copied after first
// use.
type Bus[T any] struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers []subscriber[T]
}

type subscriber[T any] struct {
	id       uint64
	function func(T)
}

// Subscribe registers function to receive every value published after
// this call returns. The returned function removes the subscription;
// it is idempotent and safe to call from inside a delivery.
//
// Subscribers may be invoked concurrently when several goroutines
// publish at once, so function must be safe for concurrent use.
func (b *Bus[T]) Subscribe(function func(T)) (unsubscribe func()) {
	if function == nil {
		panic("notify: Subscribe called with nil function")
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber[T]{id: id, function: function})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for index, entry := range b.subscribers {
		if entry.id == id {
			// Copy rather than reslice in place: a Publish in progress
			// holds the old slice as its snapshot.
			remaining := make([]subscriber[T], 0, len(b.subscribers)-1)
			remaining = append(remaining, b.subscribers[:index]...)
			remaining = append(remaining, b.subscribers[index+1:]...)
			b.subscribers = remaining
			return
		}
	}
}

// Publish delivers value to every subscriber registered at the time of
// the call. Delivery is synchronous: Publish returns after the last
// subscriber returns. Publishing on a nil *Bus is a no-op so producers
// can treat the bus as optional.
func (b *Bus[T]) Publish(value T) {
	if b == nil {
		return
	}

	b.mu.Lock()
	snapshot := b.subscribers
	b.mu.Unlock()

	for _, entry := range snapshot {
		entry.function(value)
	}
}

// Len returns the number of current subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Package pubsub provides typed, synchronous fan-out to registered handlers.
//
// Handlers run on the publisher's goroutine, in registration order, so a
// publisher that is itself serialized (the channel event loop) gets a total
// order of notifications with no extra queue.
package pubsub

import "sync"

// Unsubscribe removes a handler. Calling it more than once is safe.
type Unsubscribe func()

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Topic is one event category with any number of handlers.
// The zero value is ready to use.
type Topic[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []entry[T]
}

// Subscribe registers fn and returns a handle that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.entries = append(t.entries, entry[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

// Publish calls every handler with v and returns how many were called.
// Handlers added or removed during Publish take effect on the next call.
func (t *Topic[T]) Publish(v T) int {
	t.mu.RLock()
	entries := t.entries
	t.mu.RUnlock()

	for _, e := range entries {
		e.fn(v)
	}
	return len(entries)
}

// Len returns the number of registered handlers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.id == id {
			// Copy-on-write so an in-flight Publish keeps its snapshot intact.
			next := make([]entry[T], 0, len(t.entries)-1)
			next = append(next, t.entries[:i]...)
			t.entries = append(next, t.entries[i+1:]...)
			return
		}
	}
}

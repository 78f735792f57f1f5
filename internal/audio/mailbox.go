package audio

import "sync"

// mailbox is an unbounded FIFO with a single blocking consumer. Push never
// blocks, so producers are never stalled by a slow consumer.
type mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Push appends v and reports its resulting depth. It returns false if the
// mailbox has been closed, in which case v is discarded.
func (m *mailbox[T]) Push(v T) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, false
	}
	m.items = append(m.items, v)
	m.cond.Signal()
	return len(m.items), true
}

// Pop blocks until an item is available or the mailbox is closed.
// It returns false once closed, even if items remain.
func (m *mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.items) == 0 && !m.closed {
		m.cond.Wait()
	}
	var zero T
	if m.closed {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

// TryPop returns the next item without blocking.
func (m *mailbox[T]) TryPop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

// Len returns the number of queued items.
func (m *mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close wakes the consumer and returns the items that were never popped.
// Only the first call returns leftovers.
func (m *mailbox[T]) Close() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	left := m.items
	m.items = nil
	m.cond.Broadcast()
	return left
}

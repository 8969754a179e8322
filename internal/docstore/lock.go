// Implements the per-collection write serializer.

package docstore

import "sync"

// Locker linearizes read-modify-write sequences per key.
//
// Functions submitted under the same key run strictly one at a time in
// submission order; different keys are fully independent. The lock stays
// held across every blocking call inside fn. A failing fn releases the
// lock and its error reaches only the submitting caller; the queue keeps
// draining for everyone behind it.
//
// One Locker is constructed per process and shared by all stores; the key
// is the collection's lock key (base directory + collection name).
type Locker struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	count map[string]int
}

// NewLocker creates an empty lock coordinator.
func NewLocker() *Locker {
	return &Locker{
		tails: make(map[string]chan struct{}),
		count: make(map[string]int),
	}
}

// WithLock runs fn once every previously submitted function for key has
// finished, and returns fn's error.
func (l *Locker) WithLock(key string, fn func() error) error {
	me := make(chan struct{})
	l.mu.Lock()
	prev := l.tails[key]
	l.tails[key] = me
	l.count[key]++
	l.mu.Unlock()

	if prev != nil {
		<-prev
	}
	defer func() {
		close(me)
		l.mu.Lock()
		l.count[key]--
		if l.count[key] == 0 {
			delete(l.count, key)
			delete(l.tails, key)
		}
		l.mu.Unlock()
	}()
	return fn()
}

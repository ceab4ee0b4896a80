// listener.go: copy-on-write change listener registry
package tiercache

import "sync/atomic"

// ChangeListener is notified whenever the change-feed consumer applies a
// remote write or delete to the near-cache. Implementations must be fast and
// non-blocking; they run synchronously on the consumer's dispatch path.
type ChangeListener func(key string, kind string)

// listenerEntry pairs a listener with a stable id so Deregister can identify it in
// the immutable slice regardless of later reordering.
type listenerEntry struct {
	id int64
	fn ChangeListener
}

// listenerRegistry holds the current set of registered ChangeListeners as an
// immutable slice behind an atomic.Pointer. Register/Deregister build a new
// slice and swap the pointer, so notify (run on every dispatched record)
// never takes a lock and never observes a torn list.
type listenerRegistry struct {
	listeners atomic.Pointer[[]listenerEntry]
	nextID    atomic.Int64
}

func newListenerRegistry() *listenerRegistry {
	r := &listenerRegistry{}
	empty := make([]listenerEntry, 0)
	r.listeners.Store(&empty)
	return r
}

// Register adds l to the registry and returns a func that removes it.
func (r *listenerRegistry) Register(l ChangeListener) (unregister func()) {
	id := r.nextID.Add(1)
	for {
		old := r.listeners.Load()
		next := make([]listenerEntry, len(*old)+1)
		copy(next, *old)
		next[len(*old)] = listenerEntry{id: id, fn: l}
		if r.listeners.CompareAndSwap(old, &next) {
			break
		}
	}
	return func() { r.deregister(id) }
}

func (r *listenerRegistry) deregister(id int64) {
	for {
		old := r.listeners.Load()
		idx := -1
		for i, e := range *old {
			if e.id == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		next := make([]listenerEntry, 0, len(*old)-1)
		next = append(next, (*old)[:idx]...)
		next = append(next, (*old)[idx+1:]...)
		if r.listeners.CompareAndSwap(old, &next) {
			return
		}
	}
}

// notify invokes every registered listener with key/kind. Listener panics
// are recovered and logged rather than allowed to kill the dispatch
// goroutine, since one misbehaving listener should not stop delivery to the
// others or to the near-cache.
func (r *listenerRegistry) notify(log Logger, key, kind string) {
	for _, e := range *r.listeners.Load() {
		func(l ChangeListener) {
			defer func() {
				if p := recover(); p != nil {
					log.Error("change listener panicked", "key", key, "kind", kind, "error", NewErrPanicRecovered("ChangeListener", p))
				}
			}()
			l(key, kind)
		}(e.fn)
	}
}

// Package slot implements the lock-free coherence primitive that guards
// near-cache admission: a fixed-size table of per-slot atomic counters that
// detects whether a fetched value raced against a concurrent invalidation
// before it is written into the local tier.
package slot

import "github.com/zeebo/xxh3"

// NotOwner is the token value TryOwn returns when it lost the race to
// acquire a slot's owner token. It is never a valid token, since completedOps
// never goes negative.
const NotOwner int64 = -1

// counters holds one slot's three coherence fields, each padded to its own
// cache line.
type counters struct {
	ownerToken   paddedCounter
	activeOps    paddedCounter
	completedOps paddedCounter
}

// Table is a fixed-size array of coherence slots. The zero value is not
// usable; construct with New.
type Table struct {
	slots []counters
	mask  uint64
}

// New creates a Table with slotCount slots. slotCount must be a positive
// power of two; callers are expected to have validated this already (see
// Config.Validate), since a bad slotCount is a construction-time
// configuration error, not a runtime condition this package should recover
// from.
func New(slotCount int) *Table {
	if slotCount <= 0 || slotCount&(slotCount-1) != 0 {
		panic("slot: slotCount must be a positive power of two")
	}
	t := &Table{
		slots: make([]counters, slotCount),
		mask:  uint64(slotCount - 1),
	}
	// completedOps starts at 1 so a winning token is never 0, the value that
	// marks ownerToken as unowned.
	for i := range t.slots {
		t.slots[i].completedOps.Store(1)
	}
	return t
}

// Len returns the number of slots in the table.
func (t *Table) Len() int { return len(t.slots) }

// SlotOf deterministically maps key to a slot index. Collisions across keys
// are expected and harmless: they cause extra invalidations, never
// incorrectness.
func (t *Table) SlotOf(key string) int {
	return int(xxh3.HashString(key) & t.mask)
}

// TryOwn attempts to claim slot(key)'s owner token. On success the returned
// token is the slot's completedOps value at the moment of acquisition; on
// failure (another operation already owns the slot) it returns NotOwner.
// activeOps is incremented unconditionally, win or lose, since the caller is
// about to touch the slot's value either way (a fetch-then-maybe-admit, or a
// remove) and that presence must be visible to any concurrent admission
// attempt's canAdmit check.
func (t *Table) TryOwn(key string) (slotIdx int, token int64) {
	slotIdx = t.SlotOf(key)
	s := &t.slots[slotIdx]

	completed := s.completedOps.Load()
	token = NotOwner
	if s.ownerToken.CompareAndSwap(0, completed) {
		token = completed
	}
	s.activeOps.Add(1)
	return slotIdx, token
}

// Release ends an operation started by TryOwn. It always advances
// completedOps and decrements activeOps; it resets ownerToken to 0 only if
// token indicates this call actually won ownership, so a losing caller never
// clobbers the real owner's token.
func (t *Table) Release(slotIdx int, token int64) {
	s := &t.slots[slotIdx]
	s.completedOps.Add(1)
	s.activeOps.Add(-1)
	if token != NotOwner {
		s.ownerToken.Store(0)
	}
}

// CanAdmit reports whether a value fetched under token may still be written
// into the near-cache: token must be a real ownership token, no other
// operation may currently be touching the slot, and no operation may have
// completed against it since acquisition.
func (t *Table) CanAdmit(slotIdx int, token int64) bool {
	if token == NotOwner {
		return false
	}
	s := &t.slots[slotIdx]
	return s.activeOps.Load() == 1 && s.completedOps.Load() == token
}

// OwnAll marks every slot busy, used to quiesce the whole table during
// Clear. Pair with ReleaseAll.
func (t *Table) OwnAll() {
	for i := range t.slots {
		t.slots[i].activeOps.Add(1)
	}
}

// ReleaseAll is the mirror of OwnAll: it advances completedOps and
// decrements activeOps for every slot.
func (t *Table) ReleaseAll() {
	for i := range t.slots {
		t.slots[i].completedOps.Add(1)
		t.slots[i].activeOps.Add(-1)
	}
}

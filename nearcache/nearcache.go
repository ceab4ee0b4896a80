// Package nearcache wraps localstore with SlotTable-guarded admission: the
// layer that refuses to write a fetched value into local memory if a
// concurrent invalidation raced it.
package nearcache

import (
	"github.com/nearcache/tiercache/localstore"
	"github.com/nearcache/tiercache/slot"
)

// NotOwner re-exports slot.NotOwner so callers driving the tryOwn/release
// protocol directly never need to import the slot package themselves.
const NotOwner = slot.NotOwner

// NearCache is a LocalStore guarded by a SlotTable. All mutation happens
// through TryOwn/Release-bracketed admission so a racing invalidation is
// guaranteed to be observed before a stale value is published.
type NearCache struct {
	store *localstore.Store
	slots *slot.Table
}

// New creates a NearCache with slotCount coherence slots. slotCount must be
// a positive power of two.
func New(slotCount int) *NearCache {
	return &NearCache{
		store: localstore.New(),
		slots: slot.New(slotCount),
	}
}

// Get returns the local value for key with no slot interaction: reads never
// contend with the admission protocol.
func (n *NearCache) Get(key string) (value []byte, found bool) {
	return n.store.Get(key)
}

// TryOwn delegates to the SlotTable, claiming key's slot for an in-flight
// fetch-or-invalidate operation.
func (n *NearCache) TryOwn(key string) (slotIdx int, token int64) {
	return n.slots.TryOwn(key)
}

// ReleaseIfOwned ends the operation started by TryOwn. The name mirrors the
// spec's releaseIfOwned: Release itself already no-ops the ownerToken reset
// for a losing token, so this is a direct delegate.
func (n *NearCache) ReleaseIfOwned(slotIdx int, token int64) {
	n.slots.Release(slotIdx, token)
}

// PutIfAvailable admits value into the local store only if token is still
// valid for admission (no concurrent invalidator touched the slot since
// acquisition). Returns whether the value was admitted.
func (n *NearCache) PutIfAvailable(slotIdx int, token int64, key string, value []byte) bool {
	if !n.slots.CanAdmit(slotIdx, token) {
		return false
	}
	n.store.Put(key, value)
	return true
}

// Remove unconditionally evicts key from the local store. It does not
// itself acquire a slot; callers performing an invalidation bracket Remove
// with TryOwn/ReleaseIfOwned so the removal is visible to any concurrent
// admission attempt's CanAdmit check.
func (n *NearCache) Remove(key string) {
	n.store.Remove(key)
}

// Clear evicts every local entry. Callers bracket this with OwnAll/ReleaseAll.
func (n *NearCache) Clear() {
	n.store.Clear()
}

// OwnAll quiesces the entire SlotTable, used by Clear at the façade level.
func (n *NearCache) OwnAll() {
	n.slots.OwnAll()
}

// ReleaseAll is the mirror of OwnAll.
func (n *NearCache) ReleaseAll() {
	n.slots.ReleaseAll()
}

// Len returns the number of entries currently held locally.
func (n *NearCache) Len() int {
	return n.store.Len()
}

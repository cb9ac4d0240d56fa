// Package registry keeps track of the avatars present in the current room.
package registry

import (
	"slices"
	"sync"
)

// Avatar is one room member as seen locally.
type Avatar struct {
	PeerID    string
	Name      string
	Local     bool
	Authority bool
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	roomID  string
	localID string
	avatars map[string]*Avatar
	order   []string
}

// Default is the process-wide registry.
var Default = New()

func New() *Registry {
	return &Registry{avatars: make(map[string]*Avatar)}
}

// Bind resets the registry for a new room.
func (r *Registry) Bind(roomID, localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roomID = roomID
	r.localID = localID
	clear(r.avatars)
	r.order = r.order[:0]
}

// Spawn adds an avatar. A peer already present is left untouched, so
// re-spawning the local avatar after a scene load is a no-op. It reports
// whether a new avatar was created.
func (r *Registry) Spawn(peerID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.avatars[peerID]; ok {
		return false
	}
	r.avatars[peerID] = &Avatar{PeerID: peerID, Name: name, Local: peerID == r.localID}
	r.order = append(r.order, peerID)
	return true
}

// Despawn removes an avatar and reports whether it existed.
func (r *Registry) Despawn(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.avatars[peerID]; !ok {
		return false
	}
	delete(r.avatars, peerID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == peerID })
	return true
}

// SetAuthority marks peerID as authority and clears the flag everywhere else.
func (r *Registry) SetAuthority(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.avatars {
		a.Authority = id == peerID
	}
}

// Local returns the local avatar, if spawned.
func (r *Registry) Local() (Avatar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.avatars[r.localID]
	if !ok {
		return Avatar{}, false
	}
	return *a, true
}

// Room returns the bound room id.
func (r *Registry) Room() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomID
}

// Snapshot returns copies of every avatar in spawn order.
func (r *Registry) Snapshot() []Avatar {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Avatar, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.avatars[id])
	}
	return out
}

// Clear drops the room binding and all avatars.
func (r *Registry) Clear() {
	r.Bind("", "")
}

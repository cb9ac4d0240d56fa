// Package directory implements the room registry used by the relay server:
// capacity-limited rooms, random matchmaking, and first-joiner authority with
// migration to the oldest remaining member.
//
// A Directory is not safe for concurrent use. The signaling hub owns it from
// a single goroutine.
package directory

import (
	"fmt"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

// Directory holds every active room.
type Directory struct {
	rooms       map[string]*Room
	order       []string // room ids in creation order, for JoinRandom
	byPeer      map[string]string
	maxCapacity int
	newID       func(taken func(string) bool) string
}

// Option configures a Directory.
type Option func(*Directory)

// WithMaxCapacity caps the capacity accepted by Create.
func WithMaxCapacity(n int) Option {
	return func(d *Directory) {
		if n > 0 && n <= protocol.MaxCapacity {
			d.maxCapacity = n
		}
	}
}

// WithIDGenerator replaces the word-based room id generator.
func WithIDGenerator(gen func(taken func(string) bool) string) Option {
	return func(d *Directory) {
		d.newID = gen
	}
}

// New creates an empty directory.
func New(opts ...Option) *Directory {
	d := &Directory{
		rooms:       make(map[string]*Room),
		byPeer:      make(map[string]string),
		maxCapacity: protocol.MaxCapacity,
		newID:       GenerateRoomID,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Departure describes the effect of a peer leaving its room.
type Departure struct {
	Room             *Room
	Peer             Peer
	RoomDeleted      bool
	AuthorityChanged bool
}

// JoinRandom puts p into the oldest open room that runs the same game
// version. It fails with ErrNoRoomAvailable when there is none.
func (d *Directory) JoinRandom(p Peer) (*Room, error) {
	if _, ok := d.byPeer[p.ID]; ok {
		return nil, ErrAlreadyInRoom
	}
	for _, id := range d.order {
		r := d.rooms[id]
		if r.Version != p.Version || r.Full() {
			continue
		}
		d.admit(r, p)
		return r, nil
	}
	return nil, ErrNoRoomAvailable
}

// Create opens a new room with p as its first member and authority.
func (d *Directory) Create(p Peer, capacity int) (*Room, error) {
	if capacity < 1 || capacity > d.maxCapacity {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidCapacity, capacity, d.maxCapacity)
	}
	if _, ok := d.byPeer[p.ID]; ok {
		return nil, ErrAlreadyInRoom
	}

	r := &Room{
		ID:       d.newID(d.exists),
		Capacity: capacity,
		Version:  p.Version,
	}
	d.rooms[r.ID] = r
	d.order = append(d.order, r.ID)
	d.admit(r, p)
	return r, nil
}

// Join puts p into the room with the given id.
func (d *Directory) Join(p Peer, roomID string) (*Room, error) {
	if _, ok := d.byPeer[p.ID]; ok {
		return nil, ErrAlreadyInRoom
	}
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.Version != p.Version {
		return nil, ErrVersionMismatch
	}
	if r.Full() {
		return nil, ErrRoomFull
	}
	d.admit(r, p)
	return r, nil
}

// Leave removes peerID from its room. Empty rooms are deleted.
func (d *Directory) Leave(peerID string) (Departure, error) {
	roomID, ok := d.byPeer[peerID]
	if !ok {
		return Departure{}, ErrNotInRoom
	}
	delete(d.byPeer, peerID)

	r := d.rooms[roomID]
	p, changed := r.remove(peerID)
	dep := Departure{Room: r, Peer: p, AuthorityChanged: changed}

	if r.PeerCount() == 0 {
		d.deleteRoom(roomID)
		dep.RoomDeleted = true
	}
	return dep, nil
}

// SetScene records the shared scene of the caller's room. Only the
// authority may change it.
func (d *Directory) SetScene(peerID, scene string) (*Room, error) {
	r, ok := d.RoomOf(peerID)
	if !ok {
		return nil, ErrNotInRoom
	}
	if r.Authority() != peerID {
		return nil, ErrNotAuthority
	}
	r.Scene = scene
	return r, nil
}

// RoomOf returns the room peerID is a member of.
func (d *Directory) RoomOf(peerID string) (*Room, bool) {
	id, ok := d.byPeer[peerID]
	if !ok {
		return nil, false
	}
	return d.rooms[id], true
}

// Room returns the room with the given id.
func (d *Directory) Room(id string) (*Room, bool) {
	r, ok := d.rooms[id]
	return r, ok
}

// List returns room snapshots in creation order.
func (d *Directory) List() []protocol.RoomInfo {
	out := make([]protocol.RoomInfo, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.rooms[id].Info())
	}
	return out
}

// Len returns the number of active rooms.
func (d *Directory) Len() int {
	return len(d.rooms)
}

func (d *Directory) admit(r *Room, p Peer) {
	r.add(p)
	d.byPeer[p.ID] = r.ID
}

func (d *Directory) exists(id string) bool {
	_, ok := d.rooms[id]
	return ok
}

func (d *Directory) deleteRoom(id string) {
	delete(d.rooms, id)
	for i, rid := range d.order {
		if rid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

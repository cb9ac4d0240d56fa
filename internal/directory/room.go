package directory

import (
	"slices"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

// Peer is a connected client as the directory sees it.
type Peer struct {
	ID      string
	Name    string
	Version string
}

// Room is a bounded group of peers. Members are kept in join order and the
// authority is always one of them while the room is non-empty.
type Room struct {
	ID       string
	Capacity int
	Version  string
	Scene    string

	members   []Peer
	authority string
}

// Members returns the members in join order.
func (r *Room) Members() []Peer {
	return slices.Clone(r.members)
}

// Authority returns the id of the authority peer, or "" for an empty room.
func (r *Room) Authority() string {
	return r.authority
}

func (r *Room) PeerCount() int {
	return len(r.members)
}

func (r *Room) Full() bool {
	return len(r.members) >= r.Capacity
}

// Has reports whether peerID is a member.
func (r *Room) Has(peerID string) bool {
	return r.indexOf(peerID) >= 0
}

func (r *Room) indexOf(peerID string) int {
	return slices.IndexFunc(r.members, func(p Peer) bool { return p.ID == peerID })
}

func (r *Room) add(p Peer) {
	r.members = append(r.members, p)
	if r.authority == "" {
		r.authority = p.ID
	}
}

// remove drops peerID and hands authority to the oldest remaining member
// when the authority left. It reports whether authority changed.
func (r *Room) remove(peerID string) (Peer, bool) {
	i := r.indexOf(peerID)
	if i < 0 {
		return Peer{}, false
	}
	p := r.members[i]
	r.members = slices.Delete(r.members, i, i+1)

	if r.authority != peerID {
		return p, false
	}
	r.authority = ""
	if len(r.members) > 0 {
		r.authority = r.members[0].ID
	}
	return p, true
}

// Info builds the wire snapshot of the room.
func (r *Room) Info() protocol.RoomInfo {
	peers := make([]protocol.PeerInfo, len(r.members))
	for i, m := range r.members {
		peers[i] = protocol.PeerInfo{ID: m.ID, Name: m.Name}
	}
	return protocol.RoomInfo{
		ID:        r.ID,
		Capacity:  r.Capacity,
		Version:   r.Version,
		Scene:     r.Scene,
		Authority: r.authority,
		Peers:     peers,
	}
}

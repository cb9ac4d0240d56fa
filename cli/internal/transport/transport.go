// Package transport declares the contract between the session layer and the
// matchmaking/relay service. Requests return as soon as they are sent; their
// outcome arrives later as an Event.
package transport

import (
	"context"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

// Transport is the reliable signaling channel to the relay service.
type Transport interface {
	// Connect dials the service and announces the game version. It fails
	// when the service cannot be reached. ConnectedToMaster follows.
	Connect(ctx context.Context, version, name string) error
	JoinRandomRoom() error
	CreateRoom(capacity int) error
	JoinRoom(roomID string) error
	LeaveRoom() error
	// LoadScene asks the service to switch the shared scene of the room.
	LoadScene(name string) error
	Events() <-chan Event
	Close() error
}

// Peer identifies a room member.
type Peer struct {
	ID   string
	Name string
}

// Room is the client-side view of the room the local peer is in. Peers are
// in join order.
type Room struct {
	ID        string
	Capacity  int
	Peers     []Peer
	Authority string
	Scene     string
}

// PeerCount returns the number of members.
func (r Room) PeerCount() int {
	return len(r.Peers)
}

// Has reports whether id is a member.
func (r Room) Has(id string) bool {
	for _, p := range r.Peers {
		if p.ID == id {
			return true
		}
	}
	return false
}

// RoomFromInfo converts the wire snapshot.
func RoomFromInfo(info protocol.RoomInfo) Room {
	peers := make([]Peer, len(info.Peers))
	for i, p := range info.Peers {
		peers[i] = Peer{ID: p.ID, Name: p.Name}
	}
	return Room{
		ID:        info.ID,
		Capacity:  info.Capacity,
		Peers:     peers,
		Authority: info.Authority,
		Scene:     info.Scene,
	}
}

// Event is a notification from the transport.
type Event interface {
	isEvent()
}

type (
	// ConnectedToMaster follows a successful Connect.
	ConnectedToMaster struct{ PeerID string }

	// Disconnected reports the loss of the connection.
	Disconnected struct{ Reason string }

	// JoinRandomFailed means no open room was available.
	JoinRandomFailed struct{ Code, Message string }

	CreateRoomFailed struct{ Code, Message string }

	JoinRoomFailed struct{ Code, Message string }

	// JoinedRoom acknowledges a join or a create.
	JoinedRoom struct{ Room Room }

	LeftRoom struct{}

	PlayerEntered struct{ Peer Peer }

	// PlayerLeft carries the authority after the departure.
	PlayerLeft struct {
		Peer      Peer
		Authority string
	}

	SceneLoaded struct{ Scene string }

	// ServiceError is an error message not tied to a pending request.
	ServiceError struct{ Code, Message string }
)

func (ConnectedToMaster) isEvent() {}
func (Disconnected) isEvent()      {}
func (JoinRandomFailed) isEvent()  {}
func (CreateRoomFailed) isEvent()  {}
func (JoinRoomFailed) isEvent()    {}
func (JoinedRoom) isEvent()        {}
func (LeftRoom) isEvent()          {}
func (PlayerEntered) isEvent()     {}
func (PlayerLeft) isEvent()        {}
func (SceneLoaded) isEvent()       {}
func (ServiceError) isEvent()      {}

package session

import (
	"fmt"

	"github.com/BioHazard786/Questroom/cli/internal/transport"
)

// State is the lifecycle position of the local peer.
type State int

const (
	Disconnected State = iota
	Connecting
	ConnectedToLobby
	JoiningRoom
	InRoom
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ConnectedToLobby:
		return "lobby"
	case JoiningRoom:
		return "joining"
	case InRoom:
		return "in room"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is emitted to Options.Listener as the session progresses.
type Event interface {
	sessionEvent()
}

type (
	StateChanged struct{ From, To State }

	RoomJoined struct {
		Room      transport.Room
		PeerCount int
	}

	// AuthorityGranted is emitted when the local peer becomes authority,
	// either as first joiner or by inheriting it.
	AuthorityGranted struct{ RoomID string }

	// JoinFailed ends a join attempt; Err wraps ErrRoomCreate or ErrRoomJoin.
	JoinFailed struct{ Err error }

	PeerEntered struct{ Peer transport.Peer }

	PeerLeft struct {
		Peer      transport.Peer
		Authority string
	}

	SceneChanged struct{ Scene string }

	LeftRoom struct{ RoomID string }

	SessionDisconnected struct{ Reason string }
)

func (StateChanged) sessionEvent()        {}
func (RoomJoined) sessionEvent()          {}
func (AuthorityGranted) sessionEvent()    {}
func (JoinFailed) sessionEvent()          {}
func (PeerEntered) sessionEvent()         {}
func (PeerLeft) sessionEvent()            {}
func (SceneChanged) sessionEvent()        {}
func (LeftRoom) sessionEvent()            {}
func (SessionDisconnected) sessionEvent() {}

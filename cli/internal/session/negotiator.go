// Package session drives a peer from connect through matchmaking into a
// room, reacting to transport events one at a time.
package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/BioHazard786/Questroom/cli/internal/registry"
	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ArenaLoader is told about membership changes while the local peer holds
// authority.
type ArenaLoader interface {
	SetLocalPeer(id string)
	OnMembershipChanged(room transport.Room) error
	Reset()
}

// PeerTracker follows room membership for pose replication.
type PeerTracker interface {
	Track(peerID string)
	Forget(peerID string)
	Reset()
}

type Options struct {
	Version string
	Name    string
	// Capacity is used when auto-join creates a room.
	Capacity int
	// AutoJoin joins or creates a room as soon as the lobby is reached.
	AutoJoin bool
	// RoomID makes auto-join target one room, without the create fallback.
	RoomID string

	Listener func(Event)
	Loader   ArenaLoader
	Registry *registry.Registry
	Tracker  PeerTracker
}

type joinIntent int

const (
	intentNone joinIntent = iota
	intentRandom
	intentByID
)

// Negotiator is not safe for concurrent use; the runtime loop owns it.
type Negotiator struct {
	t    transport.Transport
	opts Options

	state   State
	localID string
	room    transport.Room

	intent   joinIntent
	capacity int
	fellBack bool
	autoJoin bool
}

func NewNegotiator(t transport.Transport, opts Options) *Negotiator {
	if opts.Registry == nil {
		opts.Registry = registry.Default
	}
	return &Negotiator{t: t, opts: opts}
}

func (n *Negotiator) State() State {
	return n.state
}

// LocalID is the id the service assigned on connect.
func (n *Negotiator) LocalID() string {
	return n.localID
}

// Room returns the current room view while InRoom.
func (n *Negotiator) Room() (transport.Room, bool) {
	if n.state != InRoom {
		return transport.Room{}, false
	}
	return n.room, true
}

// IsAuthority reports whether the local peer holds room authority.
func (n *Negotiator) IsAuthority() bool {
	return n.state == InRoom && n.localID != "" && n.room.Authority == n.localID
}

// Connect dials the service. ConnectedToLobby is reached when the transport
// reports ConnectedToMaster.
func (n *Negotiator) Connect(ctx context.Context) error {
	if n.state != Disconnected {
		return wrapError("connect", ErrInvalidTransition, n.state.String())
	}

	n.autoJoin = n.opts.AutoJoin
	n.setState(Connecting)

	if err := n.t.Connect(ctx, n.opts.Version, n.opts.Name); err != nil {
		n.autoJoin = false
		n.setState(Disconnected)
		return wrapError("connect", ErrTransportUnavailable, err.Error())
	}
	return nil
}

// JoinOrCreateRoom joins any open room and falls back to creating one with
// the given capacity, once.
func (n *Negotiator) JoinOrCreateRoom(capacity int) error {
	if n.state != ConnectedToLobby {
		return wrapError("join or create room", ErrInvalidTransition, n.state.String())
	}
	if capacity < 1 || capacity > protocol.MaxCapacity {
		return wrapError("join or create room", ErrInvalidCapacity, fmt.Sprintf("%d not in [1, %d]", capacity, protocol.MaxCapacity))
	}

	n.capacity = capacity
	n.intent = intentRandom
	n.fellBack = false
	n.setState(JoiningRoom)

	if err := n.t.JoinRandomRoom(); err != nil {
		n.intent = intentNone
		n.setState(ConnectedToLobby)
		return wrapError("join or create room", ErrTransportUnavailable, err.Error())
	}
	return nil
}

// JoinRoom joins a specific room. There is no create fallback.
func (n *Negotiator) JoinRoom(roomID string) error {
	if n.state != ConnectedToLobby {
		return wrapError("join room", ErrInvalidTransition, n.state.String())
	}

	n.intent = intentByID
	n.setState(JoiningRoom)

	if err := n.t.JoinRoom(roomID); err != nil {
		n.intent = intentNone
		n.setState(ConnectedToLobby)
		return wrapError("join room", ErrTransportUnavailable, err.Error())
	}
	return nil
}

// LeaveRoom asks to leave; the LeftRoom event returns the session to the lobby.
func (n *Negotiator) LeaveRoom() error {
	if n.state != InRoom {
		return wrapError("leave room", ErrInvalidTransition, n.state.String())
	}
	if err := n.t.LeaveRoom(); err != nil {
		return wrapError("leave room", ErrTransportUnavailable, err.Error())
	}
	return nil
}

// Disconnect closes the transport from any state. It never reconnects.
func (n *Negotiator) Disconnect() error {
	if n.state == Disconnected {
		return nil
	}
	err := n.t.Close()
	n.reset("client disconnect")
	return err
}

// Handle applies one transport event.
func (n *Negotiator) Handle(ev transport.Event) {
	switch e := ev.(type) {
	case transport.ConnectedToMaster:
		n.onConnected(e)
	case transport.Disconnected:
		if n.state != Disconnected {
			n.reset(e.Reason)
		}
	case transport.JoinRandomFailed:
		n.onJoinRandomFailed(e)
	case transport.CreateRoomFailed:
		if n.state == JoiningRoom && n.intent == intentRandom && n.fellBack {
			n.failJoin(wrapError("create room", ErrRoomCreate, describe(e.Code, e.Message)))
		}
	case transport.JoinRoomFailed:
		if n.state == JoiningRoom && n.intent == intentByID {
			n.failJoin(wrapError("join room", ErrRoomJoin, describe(e.Code, e.Message)))
		}
	case transport.JoinedRoom:
		n.onJoined(e.Room)
	case transport.PlayerEntered:
		n.onPlayerEntered(e.Peer)
	case transport.PlayerLeft:
		n.onPlayerLeft(e)
	case transport.SceneLoaded:
		if n.state == InRoom {
			n.room.Scene = e.Scene
			n.emit(SceneChanged{Scene: e.Scene})
		}
	case transport.LeftRoom:
		n.onLeftRoom()
	case transport.ServiceError:
		log.Warn().Str("code", e.Code).Str("state", n.state.String()).Msg(e.Message)
	}
}

func (n *Negotiator) onConnected(e transport.ConnectedToMaster) {
	if n.state != Connecting {
		log.Warn().Str("state", n.state.String()).Msg("unexpected connected event")
		return
	}

	n.localID = e.PeerID
	if n.opts.Loader != nil {
		n.opts.Loader.SetLocalPeer(e.PeerID)
	}
	n.setState(ConnectedToLobby)

	// The intent is consumed here so leaving a room does not rejoin.
	if n.autoJoin {
		n.autoJoin = false
		var err error
		if n.opts.RoomID != "" {
			err = n.JoinRoom(n.opts.RoomID)
		} else {
			err = n.JoinOrCreateRoom(n.opts.Capacity)
		}
		if err != nil {
			n.emit(JoinFailed{Err: err})
		}
	}
}

func (n *Negotiator) onJoinRandomFailed(e transport.JoinRandomFailed) {
	if n.state != JoiningRoom || n.intent != intentRandom || n.fellBack {
		return
	}

	log.Info().
		Err(ErrNoRoomAvailable).
		Str("code", e.Code).
		Int("capacity", n.capacity).
		Msg("creating room")

	n.fellBack = true
	if err := n.t.CreateRoom(n.capacity); err != nil {
		n.failJoin(wrapError("create room", ErrRoomCreate, err.Error()))
	}
}

func (n *Negotiator) failJoin(err error) {
	n.intent = intentNone
	n.fellBack = false
	n.setState(ConnectedToLobby)
	log.Error().Err(err).Msg("join failed")
	n.emit(JoinFailed{Err: err})
}

func (n *Negotiator) onJoined(room transport.Room) {
	if n.state != JoiningRoom {
		log.Warn().Str("room", room.ID).Str("state", n.state.String()).Msg("unexpected join acknowledgement")
		return
	}

	n.intent = intentNone
	n.fellBack = false
	n.room = room
	n.room.Peers = slices.Clone(room.Peers)

	n.opts.Registry.Bind(room.ID, n.localID)
	for _, p := range room.Peers {
		n.opts.Registry.Spawn(p.ID, p.Name)
		if p.ID != n.localID && n.opts.Tracker != nil {
			n.opts.Tracker.Track(p.ID)
		}
	}
	n.opts.Registry.SetAuthority(room.Authority)

	n.setState(InRoom)
	n.emit(RoomJoined{Room: n.room, PeerCount: room.PeerCount()})

	if n.IsAuthority() {
		n.emit(AuthorityGranted{RoomID: room.ID})
		n.loadArena()
	}
}

func (n *Negotiator) onPlayerEntered(p transport.Peer) {
	if n.state != InRoom || n.room.Has(p.ID) {
		return
	}

	n.room.Peers = append(n.room.Peers, p)
	n.opts.Registry.Spawn(p.ID, p.Name)
	if n.opts.Tracker != nil {
		n.opts.Tracker.Track(p.ID)
	}
	n.emit(PeerEntered{Peer: p})

	if n.IsAuthority() {
		n.loadArena()
	}
}

func (n *Negotiator) onPlayerLeft(e transport.PlayerLeft) {
	if n.state != InRoom {
		return
	}

	wasAuthority := n.IsAuthority()
	n.room.Peers = slices.DeleteFunc(n.room.Peers, func(p transport.Peer) bool { return p.ID == e.Peer.ID })
	n.room.Authority = e.Authority

	n.opts.Registry.Despawn(e.Peer.ID)
	n.opts.Registry.SetAuthority(e.Authority)
	if n.opts.Tracker != nil {
		n.opts.Tracker.Forget(e.Peer.ID)
	}
	n.emit(PeerLeft{Peer: e.Peer, Authority: e.Authority})

	if !n.IsAuthority() {
		return
	}
	if !wasAuthority {
		log.Info().Str("room", n.room.ID).Msg("authority inherited")
		n.emit(AuthorityGranted{RoomID: n.room.ID})
	}
	n.loadArena()
}

func (n *Negotiator) onLeftRoom() {
	if n.state != InRoom {
		return
	}
	roomID := n.room.ID
	n.clearRoom()
	n.setState(ConnectedToLobby)
	n.emit(LeftRoom{RoomID: roomID})
}

func (n *Negotiator) loadArena() {
	if n.opts.Loader == nil {
		return
	}
	if err := n.opts.Loader.OnMembershipChanged(n.room); err != nil {
		log.Warn().Err(err).Str("room", n.room.ID).Msg("arena load skipped")
	}
}

func (n *Negotiator) clearRoom() {
	n.room = transport.Room{}
	n.intent = intentNone
	n.fellBack = false
	n.opts.Registry.Clear()
	if n.opts.Tracker != nil {
		n.opts.Tracker.Reset()
	}
	if n.opts.Loader != nil {
		n.opts.Loader.Reset()
	}
}

func (n *Negotiator) reset(reason string) {
	n.clearRoom()
	n.autoJoin = false
	n.localID = ""
	n.setState(Disconnected)
	n.emit(SessionDisconnected{Reason: reason})
}

func (n *Negotiator) setState(s State) {
	if s == n.state {
		return
	}
	from := n.state
	n.state = s
	log.Debug().Str("from", from.String()).Str("state", s.String()).Msg("session state")
	n.emit(StateChanged{From: from, To: s})
}

func (n *Negotiator) emit(ev Event) {
	if n.opts.Listener != nil {
		n.opts.Listener(ev)
	}
}

func describe(code, message string) string {
	if message == "" {
		return code
	}
	return code + ": " + message
}

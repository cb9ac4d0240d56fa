// Package protocol defines the JSON messages exchanged between peers and the
// room directory server over the signaling websocket.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for every C2S (client to server) and S2C (server
// to client) websocket message.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`

	// PeerID is the target peer on C2S signal messages and the originating
	// peer on relayed S2C pose and signal messages.
	PeerID string `json:"peer_id,omitempty"`
}

// C2S message types.
const (
	TypeHello      = "hello"
	TypeJoinRandom = "join_random"
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeLoadScene  = "load_scene"
	TypePose       = "pose"
	TypeSignal     = "signal"
)

// S2C message types.
const (
	TypeWelcome          = "welcome"
	TypeJoinRandomFailed = "join_random_failed"
	TypeCreateRoomFailed = "create_room_failed"
	TypeJoinRoomFailed   = "join_room_failed"
	TypeJoinedRoom       = "joined_room"
	TypeLeftRoom         = "left_room"
	TypePlayerEntered    = "player_entered"
	TypePlayerLeft       = "player_left"
	TypeSceneLoaded      = "scene_loaded"
	TypeError            = "error"
)

// Error codes carried by failure payloads.
const (
	CodeNoRoomAvailable = "no_room_available"
	CodeRoomNotFound    = "room_not_found"
	CodeRoomFull        = "room_full"
	CodeInvalidCapacity = "invalid_capacity"
	CodeAlreadyInRoom   = "already_in_room"
	CodeNotInRoom       = "not_in_room"
	CodeNotAuthority    = "not_authority"
	CodeVersionMismatch = "version_mismatch"
	CodeHelloRequired   = "hello_required"
	CodeBadPayload      = "bad_payload"
	CodeUnknownType     = "unknown_type"
	CodeInternal        = "internal"
)

// MaxCapacity bounds room capacity. Matches the byte-sized player limit of
// common relay services.
const MaxCapacity = 255

// HelloPayload is the first message a client sends after connecting.
type HelloPayload struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

// WelcomePayload acknowledges the hello and assigns the peer id.
type WelcomePayload struct {
	PeerID string `json:"peer_id"`
}

// CreateRoomPayload requests a new room with the given capacity.
type CreateRoomPayload struct {
	Capacity int `json:"capacity"`
}

// ErrorPayload is used by every *_failed message and by error.
type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// PeerInfo describes a room member.
type PeerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomInfo is the room snapshot sent on join and listed by the server.
type RoomInfo struct {
	ID        string     `json:"id"`
	Capacity  int        `json:"capacity"`
	Version   string     `json:"version,omitempty"`
	Scene     string     `json:"scene,omitempty"`
	Authority string     `json:"authority,omitempty"`
	Peers     []PeerInfo `json:"peers,omitempty"`
}

// PeerCount returns the number of members in the snapshot.
func (r RoomInfo) PeerCount() int {
	return len(r.Peers)
}

// JoinedRoomPayload is sent to the peer that entered a room.
type JoinedRoomPayload struct {
	Room RoomInfo `json:"room"`
}

// PlayerEnteredPayload is sent to existing members when a peer joins.
type PlayerEnteredPayload struct {
	Peer PeerInfo `json:"peer"`
}

// PlayerLeftPayload is sent to remaining members. Authority carries the
// authority after any migration caused by the departure.
type PlayerLeftPayload struct {
	Peer      PeerInfo `json:"peer"`
	Authority string   `json:"authority"`
}

// ScenePayload is used by load_scene and scene_loaded.
type ScenePayload struct {
	Scene string `json:"scene"`
}

// PosePayload carries one fixed-size pose record.
type PosePayload struct {
	Seq    uint32 `json:"seq"`
	Record []byte `json:"record"`
}

// SignalPayload carries WebRTC signaling data (SDP offer/answer or ICE
// candidate) between two peers of the same room.
type SignalPayload struct {
	Type         string `json:"type,omitempty"`
	SDP          string `json:"sdp,omitempty"`
	ICECandidate any    `json:"ice_candidate,omitempty"`
}

// New builds a message with payload marshalled as JSON. A nil payload
// produces a message without payload.
func New(t string, payload any) (*Message, error) {
	if t == "" {
		return nil, fmt.Errorf("message type is empty")
	}
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// MustNew is New for payload types that cannot fail to marshal.
func MustNew(t string, payload any) *Message {
	msg, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Failure builds a failure message of type t.
func Failure(t, code, text string) *Message {
	return MustNew(t, ErrorPayload{Code: code, Error: text})
}

// Decode unmarshals the payload of msg into a value of type T.
func Decode[T any](msg *Message) (T, error) {
	var out T
	if len(msg.Payload) == 0 {
		return out, fmt.Errorf("empty payload for type %q", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}

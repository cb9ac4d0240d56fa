package signaling

import (
	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// PoseFrame is a pose record relayed by the server from another member.
type PoseFrame struct {
	PeerID string
	Seq    uint32
	Record []byte
}

// Signal is WebRTC signaling data relayed from another member.
type Signal struct {
	From    string
	Payload protocol.SignalPayload
}

// Handler routes incoming server messages to the event, pose and signal
// channels.
type Handler struct {
	Events  chan transport.Event
	Poses   chan PoseFrame
	Signals chan Signal
}

func NewHandler() *Handler {
	return &Handler{
		Events:  make(chan transport.Event, 64),
		Poses:   make(chan PoseFrame, 64),
		Signals: make(chan Signal, 32),
	}
}

// Route translates one message. Control events block when the consumer
// lags; pose frames are dropped instead.
func (h *Handler) Route(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeWelcome:
		p, err := protocol.Decode[protocol.WelcomePayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Events <- transport.ConnectedToMaster{PeerID: p.PeerID}

	case protocol.TypeJoinRandomFailed:
		p := failure(msg)
		h.Events <- transport.JoinRandomFailed{Code: p.Code, Message: p.Error}

	case protocol.TypeCreateRoomFailed:
		p := failure(msg)
		h.Events <- transport.CreateRoomFailed{Code: p.Code, Message: p.Error}

	case protocol.TypeJoinRoomFailed:
		p := failure(msg)
		h.Events <- transport.JoinRoomFailed{Code: p.Code, Message: p.Error}

	case protocol.TypeJoinedRoom:
		p, err := protocol.Decode[protocol.JoinedRoomPayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Events <- transport.JoinedRoom{Room: transport.RoomFromInfo(p.Room)}

	case protocol.TypeLeftRoom:
		h.Events <- transport.LeftRoom{}

	case protocol.TypePlayerEntered:
		p, err := protocol.Decode[protocol.PlayerEnteredPayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Events <- transport.PlayerEntered{Peer: transport.Peer{ID: p.Peer.ID, Name: p.Peer.Name}}

	case protocol.TypePlayerLeft:
		p, err := protocol.Decode[protocol.PlayerLeftPayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Events <- transport.PlayerLeft{
			Peer:      transport.Peer{ID: p.Peer.ID, Name: p.Peer.Name},
			Authority: p.Authority,
		}

	case protocol.TypeSceneLoaded:
		p, err := protocol.Decode[protocol.ScenePayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Events <- transport.SceneLoaded{Scene: p.Scene}

	case protocol.TypePose:
		p, err := protocol.Decode[protocol.PosePayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		select {
		case h.Poses <- PoseFrame{PeerID: msg.PeerID, Seq: p.Seq, Record: p.Record}:
		default:
		}

	case protocol.TypeSignal:
		p, err := protocol.Decode[protocol.SignalPayload](msg)
		if err != nil {
			h.malformed(msg, err)
			return
		}
		h.Signals <- Signal{From: msg.PeerID, Payload: p}

	case protocol.TypeError:
		p := failure(msg)
		h.Events <- transport.ServiceError{Code: p.Code, Message: p.Error}

	default:
		log.Debug().Str("type", msg.Type).Msg("ignoring unknown message")
	}
}

func (h *Handler) malformed(msg *protocol.Message, err error) {
	log.Warn().Err(err).Str("type", msg.Type).Msg("malformed server message")
}

func failure(msg *protocol.Message) protocol.ErrorPayload {
	p, err := protocol.Decode[protocol.ErrorPayload](msg)
	if err != nil {
		return protocol.ErrorPayload{Code: protocol.CodeInternal, Error: err.Error()}
	}
	return p
}

// Package webrtc carries pose records over direct peer connections, one
// unordered, unreliable data channel per remote room member.
package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/internal/protocol"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const channelLabel = "poses"

var (
	ErrNoOpenChannel     = errors.New("no open pose channel")
	ErrUnexpectedSignal  = errors.New("unexpected signal type")
	ErrMeshClosed        = errors.New("mesh closed")
	errMissingPeerConfig = errors.New("missing peer connection config")
)

// Signaler relays signaling data to another room member.
type Signaler interface {
	SendSignal(peerID string, payload protocol.SignalPayload) error
}

// Frame is a pose record received on a data channel.
type Frame struct {
	PeerID string
	Seq    uint32
	Record []byte
}

// Offers reports whether localID starts the negotiation with remoteID. Both
// ends agree without an extra round trip.
func Offers(localID, remoteID string) bool {
	return localID < remoteID
}

type link struct {
	remoteID  string
	pc        *pion.PeerConnection
	dc        atomic.Pointer[pion.DataChannel]
	open      atomic.Bool
	remoteSet bool
	pending   []pion.ICECandidateInit
}

// Mesh manages one peer connection per remote member.
type Mesh struct {
	localID string
	version string
	api     pion.Configuration
	sig     Signaler

	mu     sync.Mutex
	links  map[string]*link
	closed bool

	frames chan Frame
}

// NewMesh builds a mesh for localID using the ICE servers from cfg.
func NewMesh(cfg *config.Config, localID string, sig Signaler) (*Mesh, error) {
	if cfg == nil {
		return nil, errMissingPeerConfig
	}
	return &Mesh{
		localID: localID,
		version: cfg.GameVersion,
		api:     peerConfig(cfg),
		sig:     sig,
		links:   make(map[string]*link),
		frames:  make(chan Frame, 64),
	}, nil
}

func peerConfig(cfg *config.Config) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.STUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.TURNServers()
	if turnServers != nil {
		username, password := cfg.TURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || shouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}
	return pion.Configuration{ICEServers: iceServers, ICETransportPolicy: policy}
}

// Frames carries pose records from every open channel.
func (m *Mesh) Frames() <-chan Frame {
	return m.frames
}

// AddPeer opens a connection to remoteID. The side chosen by Offers creates
// the channel and sends the offer; the other side waits for it.
func (m *Mesh) AddPeer(remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMeshClosed
	}
	if _, ok := m.links[remoteID]; ok || remoteID == m.localID {
		return nil
	}

	l, err := m.newLink(remoteID)
	if err != nil {
		return err
	}
	m.links[remoteID] = l

	if !Offers(m.localID, remoteID) {
		return nil
	}

	ordered := false
	maxRetransmits := uint16(0)
	dc, err := l.pc.CreateDataChannel(channelLabel, &pion.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		m.dropLocked(remoteID)
		return fmt.Errorf("create data channel: %w", err)
	}
	m.attach(l, dc)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		m.dropLocked(remoteID)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		m.dropLocked(remoteID)
		return fmt.Errorf("set local description: %w", err)
	}
	return m.sig.SendSignal(remoteID, protocol.SignalPayload{Type: offer.Type.String(), SDP: offer.SDP})
}

func (m *Mesh) newLink(remoteID string) (*link, error) {
	pc, err := pion.NewPeerConnection(m.api)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	l := &link{remoteID: remoteID, pc: pc}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := m.sig.SendSignal(remoteID, protocol.SignalPayload{ICECandidate: c.ToJSON()}); err != nil {
			log.Debug().Err(err).Str("peer", remoteID).Msg("ice candidate not sent")
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Debug().Str("peer", remoteID).Str("state", state.String()).Msg("peer connection")
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			l.open.Store(false)
		}
	})

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() == channelLabel {
			m.attach(l, dc)
		}
	})
	return l, nil
}

func (m *Mesh) attach(l *link, dc *pion.DataChannel) {
	l.dc.Store(dc)

	dc.OnOpen(func() {
		l.open.Store(true)
		data, err := Marshal(MessageTypeHello, HelloPayload{PeerID: m.localID, Version: m.version})
		if err == nil {
			err = dc.Send(data)
		}
		if err != nil {
			log.Debug().Err(err).Str("peer", l.remoteID).Msg("hello not sent")
		}
	})

	dc.OnClose(func() {
		l.open.Store(false)
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		m.receive(l.remoteID, msg.Data)
	})
}

func (m *Mesh) receive(remoteID string, data []byte) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("peer", remoteID).Msg("malformed data channel message")
		return
	}

	switch msg.Type {
	case MessageTypePose:
		var p PosePayload
		if err := msg.DecodePayload(&p); err != nil {
			log.Debug().Err(err).Str("peer", remoteID).Msg("malformed pose")
			return
		}
		select {
		case m.frames <- Frame{PeerID: remoteID, Seq: p.Seq, Record: p.Record}:
		default:
		}

	case MessageTypeHello:
		var p HelloPayload
		if err := msg.DecodePayload(&p); err == nil {
			log.Info().Str("peer", remoteID).Str("version", p.Version).Msg("direct channel open")
		}
	}
}

// HandleSignal applies SDP or ICE data relayed from remoteID.
func (m *Mesh) HandleSignal(remoteID string, payload protocol.SignalPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMeshClosed
	}

	l, ok := m.links[remoteID]
	if !ok {
		if Offers(m.localID, remoteID) {
			// late data for a link we already dropped
			return nil
		}
		// candidates may overtake the offer; buffer them on a fresh link
		var err error
		if l, err = m.newLink(remoteID); err != nil {
			return err
		}
		m.links[remoteID] = l
	}

	if payload.SDP != "" {
		return m.handleSDP(l, payload)
	}
	if payload.ICECandidate != nil {
		return m.handleCandidate(l, payload.ICECandidate)
	}
	return nil
}

func (m *Mesh) handleSDP(l *link, payload protocol.SignalPayload) error {
	switch payload.Type {
	case pion.SDPTypeOffer.String():
		if err := l.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: payload.SDP}); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		l.remoteSet = true
		if err := m.flush(l); err != nil {
			return err
		}

		answer, err := l.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := l.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		return m.sig.SendSignal(l.remoteID, protocol.SignalPayload{Type: answer.Type.String(), SDP: answer.SDP})

	case pion.SDPTypeAnswer.String():
		if err := l.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: payload.SDP}); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		l.remoteSet = true
		return m.flush(l)

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedSignal, payload.Type)
	}
}

func (m *Mesh) handleCandidate(l *link, raw any) error {
	candidateBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(candidateBytes, &ice); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}

	if !l.remoteSet {
		l.pending = append(l.pending, ice)
		return nil
	}
	if err := l.pc.AddICECandidate(ice); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (m *Mesh) flush(l *link) error {
	pending := l.pending
	l.pending = nil
	for _, ice := range pending {
		if err := l.pc.AddICECandidate(ice); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
	}
	return nil
}

// RemovePeer closes the connection to remoteID.
func (m *Mesh) RemovePeer(remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(remoteID)
}

func (m *Mesh) dropLocked(remoteID string) {
	l, ok := m.links[remoteID]
	if !ok {
		return
	}
	delete(m.links, remoteID)
	l.open.Store(false)
	if err := l.pc.Close(); err != nil {
		log.Debug().Err(err).Str("peer", remoteID).Msg("close peer connection")
	}
}

// SendPose implements presence.PoseSink over every open channel.
func (m *Mesh) SendPose(seq uint32, record []byte) error {
	data, err := Marshal(MessageTypePose, PosePayload{Seq: seq, Record: record})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sent := 0
	for _, l := range m.links {
		dc := l.dc.Load()
		if !l.open.Load() || dc == nil {
			continue
		}
		if err := dc.Send(data); err != nil {
			log.Debug().Err(err).Str("peer", l.remoteID).Msg("pose send failed")
			continue
		}
		sent++
	}
	if sent == 0 {
		return ErrNoOpenChannel
	}
	return nil
}

// Ready reports whether every known peer has an open channel.
func (m *Mesh) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.links) == 0 {
		return false
	}
	for _, l := range m.links {
		if !l.open.Load() {
			return false
		}
	}
	return true
}

// Peers returns the number of peer connections, open or not.
func (m *Mesh) Peers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// Close tears down every connection. The mesh cannot be reused.
func (m *Mesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for id := range m.links {
		m.dropLocked(id)
	}
	return nil
}

// Package signaling implements the transport contract over the relay
// server's websocket.
package signaling

import (
	"context"
	"errors"
	"sync"

	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected")

// Transport is a transport.Transport over one Client at a time. Events,
// pose frames and signals survive reconnects.
type Transport struct {
	serverURL string
	handler   *Handler

	mu     sync.Mutex
	client *Client
}

var _ transport.Transport = (*Transport)(nil)

func New(serverURL string) *Transport {
	return &Transport{serverURL: serverURL, handler: NewHandler()}
}

// Connect dials and sends the hello. The welcome arrives as ConnectedToMaster.
func (t *Transport) Connect(ctx context.Context, version, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return errors.New("already connected")
	}

	c := NewClient(t.serverURL)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if err := c.Send(protocol.MustNew(protocol.TypeHello, protocol.HelloPayload{Version: version, Name: name})); err != nil {
		c.Close()
		return err
	}

	t.client = c
	go t.route(c)
	return nil
}

func (t *Transport) route(c *Client) {
	for msg := range c.Incoming() {
		t.handler.Route(msg)
	}

	t.mu.Lock()
	if t.client == c {
		t.client = nil
	}
	t.mu.Unlock()

	if c.ClosedLocally() {
		return
	}
	log.Warn().Msg("signaling connection lost")
	t.handler.Events <- transport.Disconnected{Reason: "connection to relay lost"}
}

func (t *Transport) current() (*Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, ErrNotConnected
	}
	return t.client, nil
}

func (t *Transport) send(msg *protocol.Message) error {
	c, err := t.current()
	if err != nil {
		return err
	}
	return c.Send(msg)
}

func (t *Transport) JoinRandomRoom() error {
	return t.send(protocol.MustNew(protocol.TypeJoinRandom, nil))
}

func (t *Transport) CreateRoom(capacity int) error {
	return t.send(protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: capacity}))
}

func (t *Transport) JoinRoom(roomID string) error {
	msg := protocol.MustNew(protocol.TypeJoinRoom, nil)
	msg.RoomID = roomID
	return t.send(msg)
}

func (t *Transport) LeaveRoom() error {
	return t.send(protocol.MustNew(protocol.TypeLeaveRoom, nil))
}

func (t *Transport) LoadScene(name string) error {
	return t.send(protocol.MustNew(protocol.TypeLoadScene, protocol.ScenePayload{Scene: name}))
}

// LoadSharedScene lets the transport act as the arena loader's scene sync.
func (t *Transport) LoadSharedScene(name string) error {
	return t.LoadScene(name)
}

// SendPose relays a pose record through the server to the other members.
func (t *Transport) SendPose(seq uint32, record []byte) error {
	c, err := t.current()
	if err != nil {
		return err
	}
	return c.TrySend(protocol.MustNew(protocol.TypePose, protocol.PosePayload{Seq: seq, Record: record}))
}

// SendSignal relays WebRTC signaling data to peerID.
func (t *Transport) SendSignal(peerID string, payload protocol.SignalPayload) error {
	msg, err := protocol.New(protocol.TypeSignal, payload)
	if err != nil {
		return err
	}
	msg.PeerID = peerID
	return t.send(msg)
}

func (t *Transport) Events() <-chan transport.Event {
	return t.handler.Events
}

// Poses carries pose frames relayed by the server.
func (t *Transport) Poses() <-chan PoseFrame {
	return t.handler.Poses
}

// Signals carries WebRTC signaling from other members.
func (t *Transport) Signals() <-chan Signal {
	return t.handler.Signals
}

// Close ends the current connection without emitting Disconnected.
func (t *Transport) Close() error {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()

	if c != nil {
		c.Close()
	}
	return nil
}

package signaling

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BioHazard786/Questroom/internal/directory"
	"github.com/BioHazard786/Questroom/internal/protocol"
)

var tracer = otel.Tracer("github.com/BioHazard786/Questroom/backend/internal/signaling")

// inbound is a message tagged with the client that sent it.
type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub is the central brain of the relay server. It owns the room directory
// and every registered client from a single goroutine.
type Hub struct {
	dir     *directory.Directory
	clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inbound

	roomsReq chan chan []protocol.RoomInfo
	done     chan struct{}
}

// NewHub creates a hub around dir.
func NewHub(dir *directory.Directory) *Hub {
	return &Hub{
		dir:        dir,
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inbound, 256),
		roomsReq:   make(chan chan []protocol.RoomInfo),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			log.Debug().Str("remote", remoteAddr(client)).Msg("client registered")

		case client := <-h.Unregister:
			h.unregister(ctx, client)

		case in := <-h.Inbound:
			h.handle(ctx, in.client, in.msg)

		case resp := <-h.roomsReq:
			resp <- h.dir.List()
		}
	}
}

// Rooms returns a snapshot of every active room.
func (h *Hub) Rooms(ctx context.Context) []protocol.RoomInfo {
	resp := make(chan []protocol.RoomInfo, 1)
	select {
	case h.roomsReq <- resp:
	case <-ctx.Done():
		return nil
	case <-h.done:
		return nil
	}
	select {
	case rooms := <-resp:
		return rooms
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(in inbound) bool {
	select {
	case h.Inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(ctx context.Context, c *Client) {
	log.Debug().Str("peer", c.ID).Str("remote", remoteAddr(c)).Msg("client unregistered")

	if c.ID != "" {
		if _, ok := h.dir.RoomOf(c.ID); ok {
			h.leave(ctx, c)
		}
		delete(h.clients, c.ID)
	}

	// Stops the client's WritePump.
	close(c.Send)
}

func (h *Hub) handle(ctx context.Context, c *Client, msg *protocol.Message) {
	if msg.Type == protocol.TypePose {
		// Hot path, no span.
		h.relayPose(c, msg)
		return
	}

	ctx, span := tracer.Start(ctx, "hub."+msg.Type, trace.WithAttributes(
		attribute.String("questroom.peer", c.ID),
	))
	defer span.End()

	if msg.Type != protocol.TypeHello && c.ID == "" {
		h.fail(span, c, protocol.TypeError, protocol.CodeHelloRequired, "send hello first")
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		h.handleHello(span, c, msg)

	case protocol.TypeJoinRandom:
		room, err := h.dir.JoinRandom(c.peer())
		if err != nil {
			h.fail(span, c, protocol.TypeJoinRandomFailed, directory.Code(err), err.Error())
			return
		}
		h.joined(span, c, room)

	case protocol.TypeCreateRoom:
		p, err := protocol.Decode[protocol.CreateRoomPayload](msg)
		if err != nil {
			h.fail(span, c, protocol.TypeCreateRoomFailed, protocol.CodeBadPayload, err.Error())
			return
		}
		span.SetAttributes(attribute.Int("questroom.capacity", p.Capacity))
		room, err := h.dir.Create(c.peer(), p.Capacity)
		if err != nil {
			h.fail(span, c, protocol.TypeCreateRoomFailed, directory.Code(err), err.Error())
			return
		}
		log.Info().Str("room", room.ID).Str("peer", c.ID).Int("capacity", room.Capacity).Msg("room created")
		h.joined(span, c, room)

	case protocol.TypeJoinRoom:
		room, err := h.dir.Join(c.peer(), msg.RoomID)
		if err != nil {
			h.fail(span, c, protocol.TypeJoinRoomFailed, directory.Code(err), err.Error())
			return
		}
		h.joined(span, c, room)

	case protocol.TypeLeaveRoom:
		if _, ok := h.dir.RoomOf(c.ID); !ok {
			h.fail(span, c, protocol.TypeError, protocol.CodeNotInRoom, directory.ErrNotInRoom.Error())
			return
		}
		h.leave(ctx, c)
		h.send(c, &protocol.Message{Type: protocol.TypeLeftRoom})

	case protocol.TypeLoadScene:
		p, err := protocol.Decode[protocol.ScenePayload](msg)
		if err != nil {
			h.fail(span, c, protocol.TypeError, protocol.CodeBadPayload, err.Error())
			return
		}
		room, err := h.dir.SetScene(c.ID, p.Scene)
		if err != nil {
			h.fail(span, c, protocol.TypeError, directory.Code(err), err.Error())
			return
		}
		span.SetAttributes(attribute.String("questroom.room", room.ID), attribute.String("questroom.scene", p.Scene))
		log.Info().Str("room", room.ID).Str("scene", p.Scene).Msg("shared scene loaded")
		out := protocol.MustNew(protocol.TypeSceneLoaded, p)
		out.RoomID = room.ID
		h.broadcast(room, out, "")

	case protocol.TypeSignal:
		h.relaySignal(span, c, msg)

	default:
		log.Warn().Str("type", msg.Type).Str("peer", c.ID).Msg("unknown message type")
		h.fail(span, c, protocol.TypeError, protocol.CodeUnknownType, "unknown message type "+msg.Type)
	}
}

func (h *Hub) handleHello(span trace.Span, c *Client, msg *protocol.Message) {
	if c.ID != "" {
		h.fail(span, c, protocol.TypeError, protocol.CodeBadPayload, "hello already received")
		return
	}
	p, err := protocol.Decode[protocol.HelloPayload](msg)
	if err != nil {
		h.fail(span, c, protocol.TypeError, protocol.CodeBadPayload, err.Error())
		return
	}

	c.ID = uuid.NewString()
	c.Name = p.Name
	c.Version = p.Version
	h.clients[c.ID] = c

	span.SetAttributes(attribute.String("questroom.peer", c.ID), attribute.String("questroom.version", c.Version))
	log.Info().Str("peer", c.ID).Str("name", c.Name).Str("version", c.Version).Msg("peer connected")
	h.send(c, protocol.MustNew(protocol.TypeWelcome, protocol.WelcomePayload{PeerID: c.ID}))
}

// joined acknowledges the join to c and announces c to the other members.
func (h *Hub) joined(span trace.Span, c *Client, room *directory.Room) {
	span.SetAttributes(
		attribute.String("questroom.room", room.ID),
		attribute.Int("questroom.peer_count", room.PeerCount()),
	)
	log.Info().Str("room", room.ID).Str("peer", c.ID).Int("peers", room.PeerCount()).Msg("peer joined room")

	ack := protocol.MustNew(protocol.TypeJoinedRoom, protocol.JoinedRoomPayload{Room: room.Info()})
	ack.RoomID = room.ID
	h.send(c, ack)

	entered := protocol.MustNew(protocol.TypePlayerEntered, protocol.PlayerEnteredPayload{Peer: c.info()})
	entered.RoomID = room.ID
	h.broadcast(room, entered, c.ID)
}

func (h *Hub) leave(ctx context.Context, c *Client) {
	_, span := tracer.Start(ctx, "hub.leave", trace.WithAttributes(attribute.String("questroom.peer", c.ID)))
	defer span.End()

	dep, err := h.dir.Leave(c.ID)
	if err != nil {
		span.RecordError(err)
		return
	}
	span.SetAttributes(attribute.String("questroom.room", dep.Room.ID), attribute.Bool("questroom.room_deleted", dep.RoomDeleted))

	if dep.RoomDeleted {
		log.Info().Str("room", dep.Room.ID).Msg("room deleted")
		return
	}
	if dep.AuthorityChanged {
		log.Info().Str("room", dep.Room.ID).Str("authority", dep.Room.Authority()).Msg("authority migrated")
	}

	left := protocol.MustNew(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{
		Peer:      c.info(),
		Authority: dep.Room.Authority(),
	})
	left.RoomID = dep.Room.ID
	h.broadcast(dep.Room, left, "")
}

func (h *Hub) relayPose(c *Client, msg *protocol.Message) {
	room, ok := h.dir.RoomOf(c.ID)
	if !ok {
		return
	}
	out := &protocol.Message{
		Type:    protocol.TypePose,
		Payload: msg.Payload,
		RoomID:  room.ID,
		PeerID:  c.ID,
	}
	h.broadcast(room, out, c.ID)
}

func (h *Hub) relaySignal(span trace.Span, c *Client, msg *protocol.Message) {
	room, ok := h.dir.RoomOf(c.ID)
	if !ok {
		h.fail(span, c, protocol.TypeError, protocol.CodeNotInRoom, "join a room before signaling")
		return
	}
	if msg.PeerID == c.ID || !room.Has(msg.PeerID) {
		log.Debug().Str("room", room.ID).Str("from", c.ID).Str("to", msg.PeerID).Msg("signal target not in room")
		return
	}
	target, ok := h.clients[msg.PeerID]
	if !ok {
		return
	}
	h.send(target, &protocol.Message{
		Type:    protocol.TypeSignal,
		Payload: msg.Payload,
		RoomID:  room.ID,
		PeerID:  c.ID,
	})
}

// broadcast sends msg to every member of room except skip.
func (h *Hub) broadcast(room *directory.Room, msg *protocol.Message, skip string) {
	for _, m := range room.Members() {
		if m.ID == skip {
			continue
		}
		if c, ok := h.clients[m.ID]; ok {
			h.send(c, msg)
		}
	}
}

// send never blocks the hub. A full buffer costs a pose its delivery; any
// other message is part of the client's room view, so the client is evicted
// instead and reconnects from a clean state.
func (h *Hub) send(c *Client, msg *protocol.Message) {
	if c.evicted {
		return
	}
	select {
	case c.Send <- msg:
		return
	default:
	}

	if msg.Type == protocol.TypePose {
		log.Debug().Str("peer", c.ID).Msg("send buffer full, pose dropped")
		return
	}
	log.Warn().Str("peer", c.ID).Str("type", msg.Type).Msg("send buffer full, evicting client")
	c.evicted = true
	if c.Conn != nil {
		// ReadPump fails and unregisters the client.
		c.Conn.Close()
	}
}

func (h *Hub) fail(span trace.Span, c *Client, msgType, code, text string) {
	span.SetStatus(codes.Error, code)
	log.Debug().Str("peer", c.ID).Str("type", msgType).Str("code", code).Msg(text)
	h.send(c, protocol.Failure(msgType, code, text))
}

func remoteAddr(c *Client) string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// Accept registers a new connection with the hub. It returns false once the
// hub has stopped.
func (h *Hub) Accept(c *Client) bool {
	return h.registerClient(c)
}

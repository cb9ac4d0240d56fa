package signaling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Questroom/internal/directory"
	"github.com/BioHazard786/Questroom/internal/protocol"
)

func newTestHub() *Hub {
	n := 0
	return NewHub(directory.New(directory.WithIDGenerator(func(func(string) bool) string {
		n++
		return fmt.Sprintf("room-%d", n)
	})))
}

func newTestClient(h *Hub) *Client {
	return NewClient(h, nil, 1000, 1000)
}

// next pops the next outbound message of c.
func next(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	default:
		t.Fatalf("expected an outbound message for %q", c.Name)
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message %q for %q", msg.Type, c.Name)
	default:
	}
}

func hello(t *testing.T, h *Hub, name string) *Client {
	t.Helper()
	c := newTestClient(h)
	h.handle(context.Background(), c, protocol.MustNew(protocol.TypeHello, protocol.HelloPayload{Version: "1", Name: name}))

	msg := next(t, c)
	require.Equal(t, protocol.TypeWelcome, msg.Type)
	w, err := protocol.Decode[protocol.WelcomePayload](msg)
	require.NoError(t, err)
	require.Equal(t, c.ID, w.PeerID)
	return c
}

func TestHubRequiresHello(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h)

	h.handle(context.Background(), c, &protocol.Message{Type: protocol.TypeJoinRandom})

	msg := next(t, c)
	assert.Equal(t, protocol.TypeError, msg.Type)
	p, err := protocol.Decode[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeHelloRequired, p.Code)
}

func TestHubJoinRandomFallsBackToCreate(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")

	h.handle(ctx, a, &protocol.Message{Type: protocol.TypeJoinRandom})
	msg := next(t, a)
	require.Equal(t, protocol.TypeJoinRandomFailed, msg.Type)
	fail, err := protocol.Decode[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeNoRoomAvailable, fail.Code)

	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	msg = next(t, a)
	require.Equal(t, protocol.TypeJoinedRoom, msg.Type)
	joined, err := protocol.Decode[protocol.JoinedRoomPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, 1, joined.Room.PeerCount())
	assert.Equal(t, a.ID, joined.Room.Authority)
}

func TestHubSecondPeerJoinsAndIsAnnounced(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")
	b := hello(t, h, "b")

	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)

	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	msg := next(t, b)
	require.Equal(t, protocol.TypeJoinedRoom, msg.Type)
	joined, err := protocol.Decode[protocol.JoinedRoomPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.Room.PeerCount())
	assert.Equal(t, a.ID, joined.Room.Authority)

	msg = next(t, a)
	require.Equal(t, protocol.TypePlayerEntered, msg.Type)
	entered, err := protocol.Decode[protocol.PlayerEnteredPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, b.ID, entered.Peer.ID)

	// A third peer finds the room full.
	c := hello(t, h, "c")
	h.handle(ctx, c, &protocol.Message{Type: protocol.TypeJoinRandom})
	assert.Equal(t, protocol.TypeJoinRandomFailed, next(t, c).Type)
}

func TestHubUnregisterMigratesAuthority(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")
	b := hello(t, h, "b")

	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)
	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, b)
	next(t, a)

	h.unregister(ctx, a)

	msg := next(t, b)
	require.Equal(t, protocol.TypePlayerLeft, msg.Type)
	left, err := protocol.Decode[protocol.PlayerLeftPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, a.ID, left.Peer.ID)
	assert.Equal(t, b.ID, left.Authority)

	_, open := <-a.Send
	assert.False(t, open, "send channel must be closed on unregister")
}

func TestHubLoadSceneOnlyFromAuthority(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")
	b := hello(t, h, "b")
	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)
	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, b)
	next(t, a)

	h.handle(ctx, b, protocol.MustNew(protocol.TypeLoadScene, protocol.ScenePayload{Scene: "VR_Room"}))
	msg := next(t, b)
	require.Equal(t, protocol.TypeError, msg.Type)
	p, err := protocol.Decode[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeNotAuthority, p.Code)
	assertNoMessage(t, a)

	h.handle(ctx, a, protocol.MustNew(protocol.TypeLoadScene, protocol.ScenePayload{Scene: "VR_Room"}))
	for _, c := range []*Client{a, b} {
		msg := next(t, c)
		require.Equal(t, protocol.TypeSceneLoaded, msg.Type)
		s, err := protocol.Decode[protocol.ScenePayload](msg)
		require.NoError(t, err)
		assert.Equal(t, "VR_Room", s.Scene)
	}
}

func TestHubRelaysPoseToOtherMembers(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")
	b := hello(t, h, "b")
	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)
	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, b)
	next(t, a)

	pose := protocol.MustNew(protocol.TypePose, protocol.PosePayload{Seq: 7, Record: []byte{1, 2, 3}})
	h.handle(ctx, a, pose)

	msg := next(t, b)
	assert.Equal(t, protocol.TypePose, msg.Type)
	assert.Equal(t, a.ID, msg.PeerID)
	p, err := protocol.Decode[protocol.PosePayload](msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), p.Seq)
	assertNoMessage(t, a)
}

func TestHubRelaysSignalToTarget(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")
	b := hello(t, h, "b")
	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)
	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, b)
	next(t, a)

	sig := protocol.MustNew(protocol.TypeSignal, protocol.SignalPayload{Type: "offer", SDP: "v=0"})
	sig.PeerID = b.ID
	h.handle(ctx, a, sig)

	msg := next(t, b)
	assert.Equal(t, protocol.TypeSignal, msg.Type)
	assert.Equal(t, a.ID, msg.PeerID)
}

func TestHubLeaveRoom(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a := hello(t, h, "a")

	h.handle(ctx, a, &protocol.Message{Type: protocol.TypeLeaveRoom})
	assert.Equal(t, protocol.TypeError, next(t, a).Type)

	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 2}))
	next(t, a)
	h.handle(ctx, a, &protocol.Message{Type: protocol.TypeLeaveRoom})
	assert.Equal(t, protocol.TypeLeftRoom, next(t, a).Type)
	assert.Zero(t, h.dir.Len())
}

func TestHubRunServesRoomList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newTestHub()
	go h.Run(ctx)

	a := newTestClient(h)
	require.True(t, h.submit(inbound{client: a, msg: protocol.MustNew(protocol.TypeHello, protocol.HelloPayload{Version: "1", Name: "a"})}))
	require.True(t, h.submit(inbound{client: a, msg: protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 4})}))

	require.Eventually(t, func() bool {
		return len(h.Rooms(ctx)) == 1
	}, time.Second, 10*time.Millisecond)

	rooms := h.Rooms(ctx)
	assert.Equal(t, 4, rooms[0].Capacity)
}

func joinedPair(t *testing.T, h *Hub) (*Client, *Client) {
	t.Helper()
	ctx := context.Background()
	a := hello(t, h, "a")
	b := hello(t, h, "b")
	h.handle(ctx, a, protocol.MustNew(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Capacity: 3}))
	next(t, a)
	h.handle(ctx, b, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, b)
	next(t, a)
	return a, b
}

func fill(c *Client) {
	for len(c.Send) < cap(c.Send) {
		c.Send <- &protocol.Message{Type: protocol.TypePose}
	}
}

func drain(c *Client) {
	for len(c.Send) > 0 {
		<-c.Send
	}
}

func TestHubDropsPosesForBackloggedClient(t *testing.T) {
	h := newTestHub()
	a, b := joinedPair(t, h)
	fill(b)

	h.handle(context.Background(), a, protocol.MustNew(protocol.TypePose, protocol.PosePayload{Seq: 1, Record: []byte{1}}))

	assert.False(t, b.evicted)
	drain(b)
	h.send(b, protocol.MustNew(protocol.TypeSceneLoaded, protocol.ScenePayload{Scene: "arena"}))
	assert.Equal(t, protocol.TypeSceneLoaded, next(t, b).Type)
}

func TestHubEvictsClientThatMissesRoomUpdates(t *testing.T) {
	ctx := context.Background()
	h := newTestHub()
	a, b := joinedPair(t, h)
	c := hello(t, h, "c")
	h.handle(ctx, c, &protocol.Message{Type: protocol.TypeJoinRandom})
	next(t, c)
	next(t, a)
	fill(b)

	// b cannot be told that c left; its room view would go stale.
	h.handle(ctx, c, &protocol.Message{Type: protocol.TypeLeaveRoom})

	assert.True(t, b.evicted)
	assert.Equal(t, protocol.TypePlayerLeft, next(t, a).Type)

	drain(b)
	h.send(b, protocol.MustNew(protocol.TypeSceneLoaded, protocol.ScenePayload{Scene: "arena"}))
	assertNoMessage(t, b)
}

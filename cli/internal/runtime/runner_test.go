package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/cli/internal/presence"
	"github.com/BioHazard786/Questroom/cli/internal/registry"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/BioHazard786/Questroom/cli/internal/signaling"
	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	events  chan transport.Event
	poses   chan signaling.PoseFrame
	signals chan signaling.Signal

	mu     sync.Mutex
	calls  []string
	sent   []uint32
	scenes []string
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		events:  make(chan transport.Event, 16),
		poses:   make(chan signaling.PoseFrame, 16),
		signals: make(chan signaling.Signal, 16),
	}
}

func (f *fakeRelay) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeRelay) Connect(context.Context, string, string) error { return f.record("connect") }
func (f *fakeRelay) JoinRandomRoom() error                         { return f.record("join_random") }
func (f *fakeRelay) CreateRoom(int) error                          { return f.record("create_room") }
func (f *fakeRelay) JoinRoom(string) error                         { return f.record("join_room") }
func (f *fakeRelay) LeaveRoom() error                              { return f.record("leave_room") }
func (f *fakeRelay) LoadScene(name string) error                   { return f.record("load_scene") }
func (f *fakeRelay) Close() error                                  { return f.record("close") }
func (f *fakeRelay) Events() <-chan transport.Event                { return f.events }
func (f *fakeRelay) Poses() <-chan signaling.PoseFrame             { return f.poses }
func (f *fakeRelay) Signals() <-chan signaling.Signal              { return f.signals }

func (f *fakeRelay) LoadSharedScene(name string) error {
	f.mu.Lock()
	f.scenes = append(f.scenes, name)
	f.mu.Unlock()
	return f.LoadScene(name)
}

func (f *fakeRelay) SendPose(seq uint32, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, seq)
	return nil
}

func (f *fakeRelay) SendSignal(string, protocol.SignalPayload) error { return nil }

func (f *fakeRelay) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeRelay) posesSent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingSink struct {
	mu     sync.Mutex
	events []session.Event
	last   View
}

func (s *recordingSink) SessionEvent(ev session.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) Update(v View) {
	s.mu.Lock()
	s.last = v
	s.mu.Unlock()
}

func (s *recordingSink) view() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func testConfig() *config.Config {
	return &config.Config{GameVersion: "1", Name: "alice", Capacity: 2, Arena: "arena", TickHz: 100}
}

// still is a Source that never moves.
type still struct{}

func (still) Sample(time.Duration) presence.Anchors {
	a := presence.DefaultAnchors()
	a[presence.Head].Position = mgl32.Vec3{0, 1.7, 0}
	return a
}

func startRunner(t *testing.T, relay *fakeRelay, sink *recordingSink) (*Runner, context.CancelFunc, chan error) {
	t.Helper()
	r := NewRunner(relay, Options{
		Config:   testConfig(),
		Source:   still{},
		AutoJoin: true,
		Registry: registry.New(),
		Sink:     sink,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, cancel, done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

func TestRunnerJoinsPublishesAndSmooths(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	r, _, done := startRunner(t, relay, sink)

	relay.events <- transport.ConnectedToMaster{PeerID: "a"}
	require.Eventually(t, func() bool { return relay.called("join_random") }, time.Second, 5*time.Millisecond)

	relay.events <- transport.JoinRandomFailed{Code: protocol.CodeNoRoomAvailable}
	require.Eventually(t, func() bool { return relay.called("create_room") }, time.Second, 5*time.Millisecond)

	relay.events <- transport.JoinedRoom{Room: transport.Room{
		ID: "calm-stone-lake-otter", Capacity: 2, Authority: "a",
		Peers: []transport.Peer{{ID: "a", Name: "alice"}},
	}}
	require.Eventually(t, func() bool { return relay.posesSent() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, relay.called("load_scene"))

	relay.events <- transport.PlayerEntered{Peer: transport.Peer{ID: "b", Name: "bob"}}
	// poses from a peer the room view does not list yet are rejected
	require.Eventually(t, func() bool { return len(sink.view().Peers) == 2 }, time.Second, 5*time.Millisecond)
	target := presence.DefaultAnchors()
	target[presence.Head].Position = mgl32.Vec3{5, 1.7, 0}
	relay.poses <- signaling.PoseFrame{PeerID: "b", Seq: 1, Record: presence.Encode(target)}

	require.Eventually(t, func() bool {
		v := sink.view()
		for _, p := range v.Peers {
			if p.ID == "b" {
				return p.Head == mgl32.Vec3{5, 1.7, 0}
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	v := sink.view()
	assert.Equal(t, session.InRoom, v.State)
	assert.True(t, v.Authority)
	assert.Len(t, v.Peers, 2)

	r.Send(CmdQuit)
	require.NoError(t, waitDone(t, done))

	stats := r.Stats()
	assert.Equal(t, 1, stats.RoomsJoined)
	assert.Equal(t, 1, stats.PeersSeen)
	assert.Equal(t, 1, stats.ArenaLoads)
	assert.Equal(t, 1, stats.AuthorityGrants)
	assert.Equal(t, 1, stats.PosesReceived)
	assert.Positive(t, stats.PosesSent)
	assert.True(t, relay.called("close"))
}

func TestRunnerCountsBadPoses(t *testing.T) {
	relay := newFakeRelay()
	r, cancel, done := startRunner(t, relay, &recordingSink{})

	relay.events <- transport.ConnectedToMaster{PeerID: "b"}
	relay.events <- transport.JoinedRoom{Room: transport.Room{
		ID: "calm-stone-lake-otter", Capacity: 2, Authority: "a",
		Peers: []transport.Peer{{ID: "a"}, {ID: "b"}},
	}}
	require.Eventually(t, func() bool { return relay.posesSent() > 0 }, time.Second, 5*time.Millisecond)

	relay.poses <- signaling.PoseFrame{PeerID: "a", Seq: 2, Record: presence.Encode(presence.DefaultAnchors())}
	relay.poses <- signaling.PoseFrame{PeerID: "a", Seq: 1, Record: presence.Encode(presence.DefaultAnchors())}
	relay.poses <- signaling.PoseFrame{PeerID: "a", Seq: 3, Record: []byte{1, 2, 3}}

	// a frame taken off the channel is fully ingested before the next select
	require.Eventually(t, func() bool { return len(relay.poses) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	stats := r.Stats()
	assert.Equal(t, 1, stats.PosesReceived)
	assert.Equal(t, 1, stats.PosesStale)
	assert.Equal(t, 1, stats.PosesMalformed)
	assert.Zero(t, stats.ArenaLoads)
}

func TestRunnerStopsWhenRelayDrops(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	_, _, done := startRunner(t, relay, sink)

	relay.events <- transport.ConnectedToMaster{PeerID: "a"}
	relay.events <- transport.Disconnected{Reason: "connection to relay lost"}

	err := waitDone(t, done)
	assert.ErrorIs(t, err, session.ErrTransportUnavailable)
	assert.Contains(t, err.Error(), "connection to relay lost")
}

func TestStatsDuration(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 3*time.Second, Stats{Started: now, Ended: now.Add(3 * time.Second)}.Duration())
	assert.Zero(t, Stats{}.Duration())
}

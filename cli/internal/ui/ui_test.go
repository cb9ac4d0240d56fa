package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/internal/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomsView(t *testing.T) {
	out := RoomsView([]protocol.RoomInfo{
		{ID: "calm-stone-lake-otter", Capacity: 4, Version: "1", Scene: "arena", Peers: []protocol.PeerInfo{{ID: "a"}, {ID: "b"}}},
		{ID: "bright-pine-hill-fox", Capacity: 2, Version: "1"},
	})

	assert.Contains(t, out, "calm-stone-lake-otter")
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "0/2")
	assert.Contains(t, out, "arena")
}

func TestRoomsViewEmpty(t *testing.T) {
	assert.Contains(t, RoomsView(nil), "No open rooms")
}

func TestPeersViewMarksLocalAndAuthority(t *testing.T) {
	out := PeersView([]runtime.PeerView{
		{ID: "0123456789abcdef", Name: "quest-a", Local: true, Authority: true, Head: mgl32.Vec3{0, 1.7, 0}},
		{ID: "fedcba", Name: "quest-b", Head: mgl32.Vec3{1, 1.5, -2}},
	})

	assert.Contains(t, out, "quest-a (you)")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, IconAuthority)
	assert.Contains(t, out, "-2.00")
}

func TestDescribe(t *testing.T) {
	room := transport.Room{ID: "calm-stone-lake-otter", Capacity: 4}
	tests := []struct {
		name string
		ev   session.Event
		want string
	}{
		{"connected", session.StateChanged{From: session.Connecting, To: session.ConnectedToLobby}, "Connected to lobby"},
		{"joined", session.RoomJoined{Room: room, PeerCount: 2}, "Joined room calm-stone-lake-otter (2/4)"},
		{"authority", session.AuthorityGranted{RoomID: room.ID}, "authority of calm-stone-lake-otter"},
		{"join failed", session.JoinFailed{Err: errors.New("room full")}, "Join failed: room full"},
		{"entered", session.PeerEntered{Peer: transport.Peer{ID: "b", Name: "quest-b"}}, "quest-b entered"},
		{"left without name", session.PeerLeft{Peer: transport.Peer{ID: "b"}}, "b left"},
		{"scene", session.SceneChanged{Scene: "arena"}, "Scene is now arena"},
		{"disconnected", session.SessionDisconnected{Reason: "server closed"}, "Disconnected: server closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, text := Describe(tt.ev)
			assert.Contains(t, text, tt.want)
		})
	}

	_, text := Describe(session.StateChanged{From: session.ConnectedToLobby, To: session.JoiningRoom})
	assert.Empty(t, text)
}

func TestEventStyle(t *testing.T) {
	assert.Equal(t, ErrorStyle, EventStyle(session.JoinFailed{Err: errors.New("room full")}))
	assert.Equal(t, WarningStyle, EventStyle(session.SessionDisconnected{}))
	assert.Equal(t, SuccessStyle, EventStyle(session.AuthorityGranted{}))
	assert.Equal(t, MutedStyle, EventStyle(session.PeerEntered{}))
}

func TestHeadlessPrintsEvents(t *testing.T) {
	var buf bytes.Buffer
	h := Headless{W: &buf}

	h.SessionEvent(session.SceneChanged{Scene: "arena"})
	h.SessionEvent(session.StateChanged{From: session.ConnectedToLobby, To: session.JoiningRoom})
	h.Update(runtime.View{})

	assert.Equal(t, IconArena+" Scene is now arena\n", buf.String())
}

func TestSummaryView(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	out := SummaryView("Session Summary", runtime.Stats{
		Started:       start,
		Ended:         start.Add(10 * time.Second),
		RoomsJoined:   1,
		PosesSent:     200,
		PosesReceived: 150,
	})

	assert.Contains(t, out, "Session Summary")
	assert.Contains(t, out, "10s")
	assert.Contains(t, out, "15.0/s")
	assert.Contains(t, out, "Malformed poses")
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestPresenceModelKeys(t *testing.T) {
	var sent []runtime.Command
	m := newPresenceModel(make(chan tea.Msg), func(c runtime.Command) { sent = append(sent, c) })

	m.Update(key('j'))
	m.Update(key('l'))
	m.Update(key('x'))
	_, cmd := m.Update(key('q'))

	assert.Equal(t, []runtime.Command{runtime.CmdJoin, runtime.CmdLeave, runtime.CmdQuit}, sent)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestPresenceModelRendersRoom(t *testing.T) {
	m := newPresenceModel(make(chan tea.Msg), nil)
	assert.Contains(t, m.View(), "Disconnected")

	_, cmd := m.Update(viewMsg(runtime.View{
		State:     session.InRoom,
		RoomID:    "calm-stone-lake-otter",
		Capacity:  4,
		Scene:     "arena",
		Authority: true,
		Peers:     []runtime.PeerView{{ID: "a", Name: "quest-a", Local: true, Authority: true}},
	}))
	assert.NotNil(t, cmd)

	out := m.View()
	assert.Contains(t, out, "calm-stone-lake-otter")
	assert.Contains(t, out, "1/4")
	assert.Contains(t, out, "quest-a (you)")
	assert.Contains(t, out, "relayed")
	assert.Contains(t, out, "l leave")
}

func TestPresenceModelKeepsRecentEvents(t *testing.T) {
	m := newPresenceModel(make(chan tea.Msg), nil)
	for i := range maxEventLines + 3 {
		m.Update(eventMsg{icon: IconPeer, text: string(rune('a'+i)) + " entered"})
	}

	require.Len(t, m.events, maxEventLines)
	assert.Contains(t, m.events[0], "d entered")
	assert.Contains(t, m.View(), "i entered")
}

func TestPresenceUIDropsWhenBacklogged(t *testing.T) {
	ui := NewPresenceUI(nil)
	for range 100 {
		ui.Update(runtime.View{})
	}
	ui.SessionEvent(session.StateChanged{From: session.ConnectedToLobby, To: session.JoiningRoom})

	assert.Len(t, ui.updates, cap(ui.updates))
}

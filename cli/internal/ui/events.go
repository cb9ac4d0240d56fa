package ui

import (
	"fmt"
	"io"

	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/charmbracelet/lipgloss"
)

// Describe turns a session event into an icon and a line of text. Events
// not worth showing return an empty text.
func Describe(ev session.Event) (string, string) {
	switch e := ev.(type) {
	case session.StateChanged:
		if e.To == session.ConnectedToLobby && e.From == session.Connecting {
			return IconConnect, "Connected to lobby"
		}
	case session.RoomJoined:
		return IconRoom, fmt.Sprintf("Joined room %s (%d/%d)", e.Room.ID, e.PeerCount, e.Room.Capacity)
	case session.AuthorityGranted:
		return IconAuthority, fmt.Sprintf("You are the authority of %s", e.RoomID)
	case session.JoinFailed:
		return IconError, fmt.Sprintf("Join failed: %v", e.Err)
	case session.PeerEntered:
		return IconPeer, fmt.Sprintf("%s entered", displayName(e.Peer.Name, e.Peer.ID))
	case session.PeerLeft:
		return IconLeave, fmt.Sprintf("%s left", displayName(e.Peer.Name, e.Peer.ID))
	case session.SceneChanged:
		return IconArena, fmt.Sprintf("Scene is now %s", e.Scene)
	case session.LeftRoom:
		return IconLeave, fmt.Sprintf("Left room %s", e.RoomID)
	case session.SessionDisconnected:
		return IconWarning, fmt.Sprintf("Disconnected: %s", e.Reason)
	}
	return "", ""
}

// EventStyle colours an event line by how much it matters to the user.
func EventStyle(ev session.Event) lipgloss.Style {
	switch ev.(type) {
	case session.JoinFailed:
		return ErrorStyle
	case session.SessionDisconnected:
		return WarningStyle
	case session.RoomJoined, session.AuthorityGranted:
		return SuccessStyle
	default:
		return MutedStyle
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return shortID(id)
}

// Headless prints session events as plain lines and ignores view updates.
type Headless struct {
	W io.Writer
}

var _ runtime.Sink = Headless{}

func (h Headless) SessionEvent(ev session.Event) {
	icon, text := Describe(ev)
	if text == "" {
		return
	}
	fmt.Fprintf(h.W, "%s %s\n", icon, text)
}

func (Headless) Update(runtime.View) {}

package ui

import (
	"fmt"

	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func newTable(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case style != nil:
				return style(row, col)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

// RoomsView renders the open rooms listed by the relay.
func RoomsView(rooms []protocol.RoomInfo) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No open rooms")
	}

	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		scene := r.Scene
		if scene == "" {
			scene = "-"
		}
		rows = append(rows, []string{
			r.ID,
			fmt.Sprintf("%d/%d", r.PeerCount(), r.Capacity),
			scene,
			r.Version,
		})
	}
	return newTable([]string{"Room", "Players", "Scene", "Version"}, rows, nil)
}

// PeersView renders the members of the current room with their head
// positions. The local peer is highlighted.
func PeersView(peers []runtime.PeerView) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No peers")
	}

	rows := make([][]string, 0, len(peers))
	for _, p := range peers {
		marker := IconPeer
		if p.Authority {
			marker = IconAuthority
		}
		name := p.Name
		if p.Local {
			name += " (you)"
		}
		rows = append(rows, []string{
			marker,
			name,
			shortID(p.ID),
			fmt.Sprintf("%6.2f %6.2f %6.2f", p.Head.X(), p.Head.Y(), p.Head.Z()),
		})
	}

	return newTable([]string{"", "Name", "Peer", "Head (x y z)"}, rows, func(row, col int) lipgloss.Style {
		if row >= 0 && row < len(peers) && peers[row].Local {
			return TableLocalStyle
		}
		if row%2 == 0 {
			return TableRowStyle
		}
		return TableRowAltStyle
	})
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

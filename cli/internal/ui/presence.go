package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

const maxEventLines = 6

type viewMsg runtime.View

type eventMsg struct {
	icon, text string
	style      lipgloss.Style
}

// PresenceUI shows the live room and forwards key presses to the runner.
// It implements runtime.Sink.
type PresenceUI struct {
	program *tea.Program
	model   *presenceModel
	updates chan tea.Msg
	wg      sync.WaitGroup
}

type presenceModel struct {
	spinner  spinner.Model
	view     runtime.View
	events   []string
	updates  <-chan tea.Msg
	send     func(runtime.Command)
	quitting bool
}

// NewPresenceUI builds the view. send receives the commands bound to keys.
func NewPresenceUI(send func(runtime.Command)) *PresenceUI {
	updates := make(chan tea.Msg, 64)
	return &PresenceUI{
		model:   newPresenceModel(updates, send),
		updates: updates,
	}
}

func newPresenceModel(updates <-chan tea.Msg, send func(runtime.Command)) *presenceModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &presenceModel{spinner: s, updates: updates, send: send}
}

// Start runs the program inline so earlier output stays visible.
func (ui *PresenceUI) Start() {
	ui.program = tea.NewProgram(ui.model)
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			log.Error().Err(err).Msg("presence view")
		}
	}()
}

// Stop quits the program and waits for the terminal to be restored.
func (ui *PresenceUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (ui *PresenceUI) SessionEvent(ev session.Event) {
	icon, text := Describe(ev)
	if text == "" {
		return
	}
	ui.push(eventMsg{icon: icon, text: text, style: EventStyle(ev)})
}

func (ui *PresenceUI) Update(v runtime.View) {
	ui.push(viewMsg(v))
}

func (ui *PresenceUI) push(msg tea.Msg) {
	select {
	case ui.updates <- msg:
	default:
	}
}

func (m *presenceModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *presenceModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *presenceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.command(runtime.CmdQuit)
			return m, tea.Quit
		case "j":
			m.command(runtime.CmdJoin)
		case "l":
			m.command(runtime.CmdLeave)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case viewMsg:
		m.view = runtime.View(msg)
		return m, m.listen()

	case eventMsg:
		m.events = append(m.events, msg.icon+" "+msg.style.Render(msg.text))
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		return m, m.listen()
	}
	return m, nil
}

func (m *presenceModel) command(cmd runtime.Command) {
	if m.send != nil {
		m.send(cmd)
	}
}

func (m *presenceModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%s %s\n\n", IconHeadset, TitleStyle.Render("Questroom")))

	v := m.view
	if v.State != session.InRoom {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), stateLine(v.State)))
	} else {
		b.WriteString(roomHeader(v) + "\n")
		b.WriteString(PeersView(v.Peers) + "\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, line := range m.events {
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n" + MutedStyle.Render(footer(v.State)))
	return b.String()
}

func stateLine(s session.State) string {
	switch s {
	case session.Connecting:
		return "Connecting to the relay..."
	case session.ConnectedToLobby:
		return "In the lobby"
	case session.JoiningRoom:
		return "Looking for a room..."
	default:
		return "Disconnected"
	}
}

func roomHeader(v runtime.View) string {
	transport := IconRelay + " relayed"
	if v.Direct {
		transport = IconDirect + " direct"
	}
	scene := v.Scene
	if scene == "" {
		scene = "waiting for arena"
	}
	role := "member"
	if v.Authority {
		role = IconAuthority + " " + StatusStyle.Render("authority")
	}

	content := fmt.Sprintf("%s %s  %d/%d\n%s %s  %s  %s",
		IconRoom, BoldStyle.Render(v.RoomID), len(v.Peers), v.Capacity,
		IconArena, scene, role, transport,
	)
	return RoomBoxStyle.Render(content)
}

func footer(s session.State) string {
	switch s {
	case session.InRoom:
		return "l leave  q quit"
	case session.ConnectedToLobby:
		return "j join  q quit"
	default:
		return "q quit"
	}
}

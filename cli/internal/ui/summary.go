package ui

import (
	"fmt"
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SummaryView renders the end-of-session counters.
func SummaryView(title string, s runtime.Stats) string {
	t := pretty.NewWriter()
	t.SetTitle(title)
	t.SetStyle(pretty.StyleRounded)
	t.Style().Title.Colors = text.Colors{text.FgHiMagenta, text.Bold}
	t.Style().Options.SeparateRows = false

	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Duration", s.Duration().Round(time.Millisecond).String()},
		{"Rooms joined", s.RoomsJoined},
		{"Peers seen", s.PeersSeen},
		{"Authority grants", s.AuthorityGrants},
		{"Arena loads", s.ArenaLoads},
	})
	t.AppendSeparator()
	t.AppendRows([]pretty.Row{
		{"Poses sent", s.PosesSent},
		{"Poses received", s.PosesReceived},
		{"Stale poses", s.PosesStale},
		{"Malformed poses", s.PosesMalformed},
		{"Receive rate", rate(s.PosesReceived, s.Duration())},
	})
	t.SetColumnConfigs([]pretty.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t.Render()
}

func rate(n int, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f/s", float64(n)/d.Seconds())
}

func RenderSummary(title string, s runtime.Stats) {
	fmt.Println(SummaryView(title, s))
}

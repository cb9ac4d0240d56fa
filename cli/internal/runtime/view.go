package runtime

import (
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/presence"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/go-gl/mathgl/mgl32"
)

// PeerView is one row of the presence view.
type PeerView struct {
	ID        string
	Name      string
	Local     bool
	Authority bool
	Head      mgl32.Vec3
}

// View is a snapshot of the loop state for display.
type View struct {
	State     session.State
	RoomID    string
	Capacity  int
	Scene     string
	Authority bool
	Direct    bool
	Peers     []PeerView
}

// Stats are the counters reported at the end of a session.
type Stats struct {
	Started         time.Time
	Ended           time.Time
	RoomsJoined     int
	PeersSeen       int
	AuthorityGrants int
	ArenaLoads      int
	PosesSent       int
	PosesReceived   int
	PosesStale      int
	PosesMalformed  int
}

// Duration is how long Run was active.
func (s Stats) Duration() time.Duration {
	if s.Started.IsZero() || s.Ended.Before(s.Started) {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// View builds a snapshot from the loop state.
func (r *Runner) View() View {
	v := View{State: r.nego.State(), Direct: r.mesh != nil && r.mesh.Ready()}

	room, ok := r.nego.Room()
	if !ok {
		return v
	}
	v.RoomID = room.ID
	v.Capacity = room.Capacity
	v.Scene = room.Scene
	v.Authority = r.nego.IsAuthority()

	local := r.rep.Local()
	for _, a := range r.reg.Snapshot() {
		pv := PeerView{ID: a.PeerID, Name: a.Name, Local: a.Local, Authority: a.Authority}
		if a.Local {
			pv.Head = local[presence.Head].Position
		} else if shown, ok := r.rep.Displayed(a.PeerID); ok {
			pv.Head = shown[presence.Head].Position
		}
		v.Peers = append(v.Peers, pv)
	}
	return v
}

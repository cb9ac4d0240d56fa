// Package runtime runs the replication loop: one goroutine owns the session,
// the replicator and the direct mesh, and reacts to transport events, pose
// frames, ticks and user commands in turn.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/arena"
	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/cli/internal/presence"
	"github.com/BioHazard786/Questroom/cli/internal/registry"
	"github.com/BioHazard786/Questroom/cli/internal/session"
	"github.com/BioHazard786/Questroom/cli/internal/signaling"
	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/BioHazard786/Questroom/cli/internal/webrtc"
	"github.com/rs/zerolog/log"
)

// Relay is the signaling transport plus its relayed pose and signal streams.
type Relay interface {
	transport.Transport
	presence.PoseSink
	webrtc.Signaler
	arena.SceneSync
	Poses() <-chan signaling.PoseFrame
	Signals() <-chan signaling.Signal
}

// Command is a user request handled on the loop.
type Command int

const (
	CmdJoin Command = iota
	CmdLeave
	CmdQuit
)

// Sink receives what the loop wants to show.
type Sink interface {
	SessionEvent(ev session.Event)
	Update(v View)
}

type Options struct {
	Config *config.Config
	Source presence.Source
	// AutoJoin joins or creates a room once connected.
	AutoJoin bool
	// RoomID joins that room instead; it implies AutoJoin.
	RoomID string
	// Direct carries poses over WebRTC when every peer is reachable.
	Direct   bool
	Registry *registry.Registry
	Sink     Sink
}

// Runner owns all session state; its fields are only touched from Run.
type Runner struct {
	relay    Relay
	cfg      *config.Config
	source   presence.Source
	direct   bool
	sink     Sink
	tick     time.Duration
	capacity int

	nego   *session.Negotiator
	rep    *presence.Replicator
	loader *arena.Loader
	reg    *registry.Registry
	mesh   *webrtc.Mesh

	commands chan Command
	stats    Stats
}

func NewRunner(relay Relay, opts Options) *Runner {
	r := &Runner{
		relay:    relay,
		cfg:      opts.Config,
		source:   opts.Source,
		direct:   opts.Direct,
		sink:     opts.Sink,
		tick:     time.Second / time.Duration(opts.Config.TickHz),
		capacity: opts.Config.Capacity,
		reg:      opts.Registry,
		commands: make(chan Command, 8),
	}
	if r.source == nil {
		r.source = presence.Orbit{Radius: 0.5}
	}
	if r.reg == nil {
		r.reg = registry.Default
	}

	r.rep = presence.NewReplicator(poseRouter{r})
	r.loader = arena.NewLoader(relay, opts.Config.Arena)
	r.nego = session.NewNegotiator(relay, session.Options{
		Version:  opts.Config.GameVersion,
		Name:     opts.Config.Name,
		Capacity: opts.Config.Capacity,
		AutoJoin: opts.AutoJoin || opts.RoomID != "",
		RoomID:   opts.RoomID,
		Listener: r.onSession,
		Loader:   r.loader,
		Registry: r.reg,
		Tracker:  r.rep,
	})
	return r
}

// Send queues a command. It never blocks; excess commands are dropped.
func (r *Runner) Send(cmd Command) {
	select {
	case r.commands <- cmd:
	default:
	}
}

// Run connects and loops until ctx ends, CmdQuit arrives or the relay
// drops the connection. It does not reconnect.
func (r *Runner) Run(ctx context.Context) error {
	r.stats.Started = time.Now()
	if err := r.nego.Connect(ctx); err != nil {
		return err
	}
	defer r.shutdown()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	start, last := time.Now(), time.Now()
	for {
		var meshFrames <-chan webrtc.Frame
		if r.mesh != nil {
			meshFrames = r.mesh.Frames()
		}

		select {
		case <-ctx.Done():
			return nil

		case ev := <-r.relay.Events():
			r.nego.Handle(ev)
			if d, ok := ev.(transport.Disconnected); ok {
				return &session.Error{Op: "run", Err: session.ErrTransportUnavailable, Details: d.Reason}
			}

		case f := <-r.relay.Poses():
			r.ingest(f.PeerID, f.Seq, f.Record)

		case f := <-meshFrames:
			r.ingest(f.PeerID, f.Seq, f.Record)

		case s := <-r.relay.Signals():
			if r.mesh == nil {
				continue
			}
			if err := r.mesh.HandleSignal(s.From, s.Payload); err != nil {
				log.Warn().Err(err).Str("peer", s.From).Msg("signal rejected")
			}

		case now := <-ticker.C:
			r.step(now.Sub(start), now.Sub(last))
			last = now

		case cmd := <-r.commands:
			if cmd == CmdQuit {
				return nil
			}
			r.command(cmd)
		}
	}
}

func (r *Runner) command(cmd Command) {
	var err error
	switch cmd {
	case CmdJoin:
		err = r.nego.JoinOrCreateRoom(r.capacity)
	case CmdLeave:
		err = r.nego.LeaveRoom()
	}
	if err != nil {
		log.Warn().Err(err).Msg("command ignored")
	}
}

func (r *Runner) step(elapsed, dt time.Duration) {
	if r.nego.State() == session.InRoom {
		r.rep.PublishLocalPose(r.source.Sample(elapsed))
		r.stats.PosesSent++
	}
	r.rep.Tick(dt)
	if r.sink != nil {
		r.sink.Update(r.View())
	}
}

func (r *Runner) ingest(peerID string, seq uint32, record []byte) {
	err := r.rep.IngestRemotePose(peerID, seq, record)
	switch {
	case err == nil:
		r.stats.PosesReceived++
	case errors.Is(err, presence.ErrStalePose):
		r.stats.PosesStale++
	case errors.Is(err, presence.ErrMalformedPose):
		r.stats.PosesMalformed++
		log.Warn().Err(err).Str("peer", peerID).Msg("pose dropped")
	default:
		log.Debug().Err(err).Str("peer", peerID).Msg("pose dropped")
	}
}

func (r *Runner) onSession(ev session.Event) {
	switch e := ev.(type) {
	case session.RoomJoined:
		r.stats.RoomsJoined++
		r.stats.PeersSeen += e.PeerCount - 1
		r.openMesh(e.Room)
	case session.AuthorityGranted:
		r.stats.AuthorityGrants++
	case session.PeerEntered:
		r.stats.PeersSeen++
		r.addMeshPeer(e.Peer.ID)
	case session.PeerLeft:
		if r.mesh != nil {
			r.mesh.RemovePeer(e.Peer.ID)
		}
	case session.LeftRoom:
		r.closeMesh()
	case session.SessionDisconnected:
		r.closeMesh()
	}
	r.stats.ArenaLoads = r.loader.Loads()

	if r.sink != nil {
		r.sink.SessionEvent(ev)
	}
}

func (r *Runner) openMesh(room transport.Room) {
	if !r.direct {
		return
	}
	m, err := webrtc.NewMesh(r.cfg, r.nego.LocalID(), r.relay)
	if err != nil {
		log.Warn().Err(err).Msg("direct mesh unavailable, relaying poses")
		return
	}
	r.mesh = m
	for _, p := range room.Peers {
		r.addMeshPeer(p.ID)
	}
}

func (r *Runner) addMeshPeer(id string) {
	if r.mesh == nil {
		return
	}
	if err := r.mesh.AddPeer(id); err != nil {
		log.Warn().Err(err).Str("peer", id).Msg("direct link failed, relaying poses")
	}
}

func (r *Runner) closeMesh() {
	if r.mesh == nil {
		return
	}
	r.mesh.Close()
	r.mesh = nil
}

func (r *Runner) shutdown() {
	if err := r.nego.Disconnect(); err != nil {
		log.Debug().Err(err).Msg("disconnect")
	}
	r.stats.Ended = time.Now()
}

// Stats returns the counters collected so far. Call after Run returns.
func (r *Runner) Stats() Stats {
	return r.stats
}

// poseRouter prefers the direct mesh once every peer has an open channel
// and relays through the server otherwise.
type poseRouter struct {
	r *Runner
}

func (p poseRouter) SendPose(seq uint32, record []byte) error {
	if m := p.r.mesh; m != nil && m.Ready() {
		if err := m.SendPose(seq, record); err == nil {
			return nil
		}
	}
	return p.r.relay.SendPose(seq, record)
}

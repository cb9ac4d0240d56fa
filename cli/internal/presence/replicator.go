package presence

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"
)

const (
	// SmoothingFactor scales dt into the interpolation fraction.
	SmoothingFactor = 5
	// SnapDistance is the gap at or beyond which a remote anchor jumps
	// straight to its target.
	SnapDistance = 2
)

// PoseSink carries encoded local poses to the other room members. Delivery
// is unreliable and unordered.
type PoseSink interface {
	SendPose(seq uint32, record []byte) error
}

type remote struct {
	displayed Anchors
	target    Anchors
	hasTarget bool
	lastSeq   uint32
}

// Replicator publishes the local pose and interpolates remote ones.
type Replicator struct {
	mu    sync.Mutex
	sink  PoseSink
	seq   uint32
	local Anchors
	peers map[string]*remote
}

// NewReplicator creates a Replicator that publishes to sink. A nil sink
// keeps publishing local-only until SetSink is called.
func NewReplicator(sink PoseSink) *Replicator {
	return &Replicator{
		sink:  sink,
		local: DefaultAnchors(),
		peers: make(map[string]*remote),
	}
}

// SetSink swaps the outbound channel, e.g. when the direct mesh comes up.
func (r *Replicator) SetSink(sink PoseSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// PublishLocalPose encodes anchors and hands them to the sink. Send errors
// are logged and dropped; a lost sample is superseded by the next one.
func (r *Replicator) PublishLocalPose(anchors Anchors) {
	r.mu.Lock()
	r.local = anchors
	r.seq++
	seq, sink := r.seq, r.sink
	r.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.SendPose(seq, Encode(anchors)); err != nil {
		log.Debug().Err(err).Uint32("seq", seq).Msg("pose send dropped")
	}
}

// IngestRemotePose stores the decoded record as the target for peerID.
func (r *Replicator) IngestRemotePose(peerID string, seq uint32, record []byte) error {
	anchors, err := Decode(record)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[peerID]
	if !ok {
		return ErrUnknownPeer
	}
	if p.hasTarget && int32(seq-p.lastSeq) <= 0 {
		return ErrStalePose
	}
	p.target = anchors
	p.lastSeq = seq
	p.hasTarget = true
	return nil
}

// Tick advances every remote peer towards its latest target.
func (r *Replicator) Tick(dt time.Duration) {
	t := mgl32.Clamp(float32(dt.Seconds())*SmoothingFactor, 0, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.peers {
		if !p.hasTarget {
			continue
		}
		for i := range p.displayed {
			p.displayed[i] = smooth(p.displayed[i], p.target[i], t)
		}
	}
}

func smooth(from, to Pose, t float32) Pose {
	d := float64(from.Position.Sub(to.Position).Len())
	// a non-finite distance can never shrink by lerping
	if d >= SnapDistance || math.IsNaN(d) || math.IsInf(d, 0) {
		return to
	}

	target := to.Rotation
	// q and -q are the same orientation; take the short arc.
	if from.Rotation.Dot(target) < 0 {
		target = target.Scale(-1)
	}
	return Pose{
		Position: from.Position.Add(to.Position.Sub(from.Position).Mul(t)),
		Rotation: mgl32.QuatNlerp(from.Rotation, target, t),
	}
}

// Track starts accepting samples for peerID. Tracking a known peer is a no-op.
func (r *Replicator) Track(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[peerID]; ok {
		return
	}
	r.peers[peerID] = &remote{displayed: DefaultAnchors(), target: DefaultAnchors()}
}

// Forget drops all state held for peerID.
func (r *Replicator) Forget(peerID string) {
	r.mu.Lock()
	delete(r.peers, peerID)
	r.mu.Unlock()
}

// Reset forgets every remote peer, used when leaving a room.
func (r *Replicator) Reset() {
	r.mu.Lock()
	clear(r.peers)
	r.mu.Unlock()
}

// Displayed returns the smoothed pose currently shown for peerID.
func (r *Replicator) Displayed(peerID string) (Anchors, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[peerID]
	if !ok {
		return Anchors{}, false
	}
	return p.displayed, true
}

// Local returns the last published local pose.
func (r *Replicator) Local() Anchors {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local
}

// Peers returns the ids currently tracked.
func (r *Replicator) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

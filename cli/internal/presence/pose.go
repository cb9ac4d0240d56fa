// Package presence replicates head and hand poses between room members and
// smooths the remote ones.
package presence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Anchor indexes a tracked body part.
type Anchor int

const (
	Head Anchor = iota
	LeftHand
	RightHand

	anchorCount
)

func (a Anchor) String() string {
	switch a {
	case Head:
		return "head"
	case LeftHand:
		return "left"
	case RightHand:
		return "right"
	default:
		return fmt.Sprintf("anchor(%d)", int(a))
	}
}

// Pose is a position and orientation in world space.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// IdentityPose sits at the origin facing forward.
func IdentityPose() Pose {
	return Pose{Rotation: mgl32.QuatIdent()}
}

// Anchors holds one pose per anchor, indexed by Anchor.
type Anchors [anchorCount]Pose

// DefaultAnchors is what a peer shows before its first sample arrives.
func DefaultAnchors() Anchors {
	var a Anchors
	for i := range a {
		a[i] = IdentityPose()
	}
	return a
}

const (
	floatsPerPose = 7
	// RecordSize is the byte length of one encoded pose record: three
	// anchors of position (x,y,z) then rotation (x,y,z,w), float32 little-endian.
	RecordSize = int(anchorCount) * floatsPerPose * 4
)

var (
	ErrMalformedPose = errors.New("malformed pose record")
	ErrUnknownPeer   = errors.New("pose from unknown peer")
	ErrStalePose     = errors.New("stale pose sample")
)

// Encode writes the fixed-layout record.
func Encode(a Anchors) []byte {
	buf := make([]byte, 0, RecordSize)
	for _, p := range a {
		for _, f := range [floatsPerPose]float32{
			p.Position[0], p.Position[1], p.Position[2],
			p.Rotation.V[0], p.Rotation.V[1], p.Rotation.V[2], p.Rotation.W,
		} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// Decode parses a record produced by Encode.
func Decode(record []byte) (Anchors, error) {
	var a Anchors
	if len(record) != RecordSize {
		return a, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedPose, len(record), RecordSize)
	}

	var f [floatsPerPose]float32
	for i := range a {
		for j := range f {
			off := (i*floatsPerPose + j) * 4
			f[j] = math.Float32frombits(binary.LittleEndian.Uint32(record[off:]))
			if v := float64(f[j]); math.IsNaN(v) || math.IsInf(v, 0) {
				return Anchors{}, fmt.Errorf("%w: non-finite value at float %d", ErrMalformedPose, i*floatsPerPose+j)
			}
		}
		a[i] = Pose{
			Position: mgl32.Vec3{f[0], f[1], f[2]},
			Rotation: mgl32.Quat{V: mgl32.Vec3{f[3], f[4], f[5]}, W: f[6]},
		}
	}
	return a, nil
}

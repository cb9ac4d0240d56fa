package presence

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Source samples the local tracked anchors. In an engine this reads the
// headset and controllers.
type Source interface {
	Sample(elapsed time.Duration) Anchors
}

// Orbit is a synthetic Source: the head sways on a small circle and both
// hands swing in front of it. Phase offsets keep concurrent peers apart.
type Orbit struct {
	Radius float32
	Period time.Duration
	Phase  float32
}

// Sample implements Source.
func (o Orbit) Sample(elapsed time.Duration) Anchors {
	period := o.Period
	if period <= 0 {
		period = 4 * time.Second
	}
	angle := o.Phase + float32(2*math.Pi*elapsed.Seconds()/period.Seconds())
	sin, cos := float32(math.Sin(float64(angle))), float32(math.Cos(float64(angle)))

	head := Pose{
		Position: mgl32.Vec3{o.Radius * cos, 1.7, o.Radius * sin},
		Rotation: mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}),
	}
	swing := 0.2 * sin
	left := Pose{
		Position: head.Position.Add(mgl32.Vec3{-0.25, -0.4, 0.3 + swing}),
		Rotation: mgl32.QuatRotate(swing, mgl32.Vec3{1, 0, 0}),
	}
	right := Pose{
		Position: head.Position.Add(mgl32.Vec3{0.25, -0.4, 0.3 - swing}),
		Rotation: mgl32.QuatRotate(-swing, mgl32.Vec3{1, 0, 0}),
	}
	return Anchors{Head: head, LeftHand: left, RightHand: right}
}

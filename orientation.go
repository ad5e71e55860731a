package anglefix

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// Slot identifies a connected player for the duration of their session.
// Slots are reused once a player disconnects.
type Slot int

// Orientation is a view direction captured at a point in time.
type Orientation struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// OrientationFromRotation converts a Dragonfly rotation. Dragonfly players have no roll.
func OrientationFromRotation(r cube.Rotation) Orientation {
	return Orientation{Pitch: r.Pitch(), Yaw: r.Yaw()}
}

// OrientationFromVec3 reads a (pitch, yaw, roll) vector.
func OrientationFromVec3(v mgl64.Vec3) Orientation {
	return Orientation{Pitch: v[0], Yaw: v[1], Roll: v[2]}
}

// Rotation returns the yaw and pitch as a Dragonfly rotation.
func (o Orientation) Rotation() cube.Rotation {
	return cube.Rotation{o.Yaw, o.Pitch}
}

// Vec3 returns the orientation as a (pitch, yaw, roll) vector.
func (o Orientation) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{o.Pitch, o.Yaw, o.Roll}
}

// String returns a string representation of the orientation for debugging.
func (o Orientation) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", o.Pitch, o.Yaw, o.Roll)
}

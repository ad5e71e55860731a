package anglefix

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// TeleportDesignerName is the designer name carried by teleport volumes.
const TeleportDesignerName = "trigger_teleport"

// Volume is a teleport trigger placed in a world. Players touching the box are
// moved to Destination.
type Volume struct {
	// Name identifies the volume in logs.
	Name string
	// Box is the trigger area.
	Box cube.BBox
	// Destination is where touching players are sent.
	Destination mgl64.Vec3
	// DestinationRotation is applied to players on arrival unless LandmarkAngles is set.
	DestinationRotation cube.Rotation
	// LandmarkAngles keeps the player's view through the teleport.
	LandmarkAngles bool
}

// Compile-time check that Volume implements Trigger.
var _ Trigger = (*Volume)(nil)

// DesignerName implements Entity.
func (v *Volume) DesignerName() string {
	return TeleportDesignerName
}

// UseLandmarkAngles implements Trigger.
func (v *Volume) UseLandmarkAngles() bool {
	return v.LandmarkAngles
}

// Contains reports whether pos lies inside the volume.
func (v *Volume) Contains(pos mgl64.Vec3) bool {
	return v.Box.Vec3Within(pos)
}

// arrive moves p to the destination the way the volume dictates. The rotation
// is set first so the teleport packet carries it to the player's client.
func (v *Volume) arrive(p *player.Player) {
	if !v.LandmarkAngles {
		turn(p, v.DestinationRotation)
	}
	p.Teleport(v.Destination)
}

// pawn adapts a session to the Pawn interface with the rotation seen at the
// time of the notification.
type pawn struct {
	session  *Session
	rotation cube.Rotation
}

// Compile-time check that pawn implements Pawn.
var _ Pawn = (*pawn)(nil)

func (p *pawn) DesignerName() string {
	return PlayerDesignerName
}

func (p *pawn) Valid() bool {
	return p.session != nil && p.session.Valid()
}

func (p *pawn) Controller() (Controller, bool) {
	if p.session == nil {
		return nil, false
	}
	return p.session, true
}

func (p *pawn) EyeAngles() Orientation {
	return OrientationFromRotation(p.rotation)
}

// Teleport applies o in the player's world transaction. It must not be called
// from inside a transaction of that world.
func (p *pawn) Teleport(o Orientation) {
	p.session.Exec(func(_ *world.Tx, pl *player.Player) {
		turn(pl, o.Rotation())
		pl.Teleport(pl.Position())
	})
}

// turn sets the server-side rotation of p to r without moving them.
// Move only reaches other viewers, so callers follow up with a Teleport to
// update the player's own view.
func turn(p *player.Player, r cube.Rotation) {
	cur := p.Rotation()
	p.Move(mgl64.Vec3{}, r.Yaw()-cur.Yaw(), r.Pitch()-cur.Pitch())
}

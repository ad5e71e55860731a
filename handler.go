package anglefix

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// Handler is the player.Handler that drives teleport volumes for one session.
//
// Concurrency:
// Dragonfly calls handlers synchronously within the player's world transaction,
// so the touch state below is only ever accessed from one goroutine at a time.
type Handler struct {
	player.NopHandler

	plugin  *Plugin
	session *Session

	// touching holds the volumes the player is currently inside
	touching map[*Volume]struct{}

	// teleporting is set while a volume moves the player, so the moves it
	// issues do not fire touch notifications of their own
	teleporting bool
}

// Compile-time check that Handler implements player.Handler.
var _ player.Handler = (*Handler)(nil)

// Session returns the session associated with this handler.
func (h *Handler) Session() *Session {
	return h.session
}

// HandleMove fires touch notifications for every volume the player enters or leaves.
func (h *Handler) HandleMove(ctx *player.Context, newPos mgl64.Vec3, newRot cube.Rotation) {
	if h.teleporting {
		return
	}
	p := ctx.Val()
	w := p.Tx().World()

	for _, v := range h.plugin.Volumes(w) {
		_, was := h.touching[v]
		inside := v.Contains(newPos)

		switch {
		case inside && !was:
			h.touching[v] = struct{}{}
			h.plugin.Fix(w).OnStartTouch(h.event("OnStartTouch", v, newRot))

			ctx.Cancel()
			h.teleporting = true
			v.arrive(p)
			h.teleporting = false

			if !v.Contains(p.Position()) {
				delete(h.touching, v)
				h.plugin.Fix(w).OnEndTouch(h.event("OnEndTouch", v, p.Rotation()))
			}
			return

		case !inside && was:
			delete(h.touching, v)
			h.plugin.Fix(w).OnEndTouch(h.event("OnEndTouch", v, newRot))
		}
	}
}

// HandleChangeWorld drops touch state from the previous world.
func (h *Handler) HandleChangeWorld(_ *player.Player, _, _ *world.World) {
	clear(h.touching)
	h.plugin.forget(h.session)
}

// HandleQuit closes the session, freeing its slot.
func (h *Handler) HandleQuit(_ *player.Player) {
	clear(h.touching)
	h.session.Close()
}

// event builds a touch notification for the handler's player.
func (h *Handler) event(output string, v *Volume, rot cube.Rotation) TouchEvent {
	return TouchEvent{
		Output:    output,
		Activator: &pawn{session: h.session, rotation: rot},
		Caller:    v,
	}
}

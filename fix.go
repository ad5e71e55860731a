package anglefix

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// PlayerDesignerName is the designer name carried by player entities.
const PlayerDesignerName = "player"

// HookResult tells the host how to continue after a notification.
type HookResult int

const (
	// Continue lets the host carry on with its default handling.
	Continue HookResult = iota
	// Handled stops further hooks but keeps default handling.
	Handled
	// Stop cancels the default handling.
	Stop
)

// Entity is any host entity that can appear in a trigger notification.
type Entity interface {
	DesignerName() string
}

// Pawn is the movable body of a player.
type Pawn interface {
	Entity
	// Valid reports whether the pawn still exists.
	Valid() bool
	// Controller returns the session controlling the pawn.
	Controller() (Controller, bool)
	// EyeAngles returns the current view orientation.
	EyeAngles() Orientation
	// Teleport sets the view orientation, leaving position and velocity alone.
	Teleport(o Orientation)
}

// Controller is the session controlling a pawn.
type Controller interface {
	// Valid reports whether the session is still connected.
	Valid() bool
	// Slot returns the player's slot.
	Slot() Slot
	// SessionID returns the identity of the connected player. uuid.Nil is invalid.
	SessionID() uuid.UUID
}

// Trigger is a teleport volume.
type Trigger interface {
	Entity
	// UseLandmarkAngles reports whether the destination supplies the orientation.
	UseLandmarkAngles() bool
}

// MapSource reports the map currently loaded by the host.
type MapSource interface {
	CurrentMap() string
}

// MapName is a MapSource for a fixed map name.
type MapName string

// CurrentMap implements MapSource.
func (m MapName) CurrentMap() string { return string(m) }

// MapFunc adapts a function to a MapSource.
type MapFunc func() string

// CurrentMap implements MapSource.
func (f MapFunc) CurrentMap() string { return f() }

// TouchEvent is a volume entry or exit notification.
type TouchEvent struct {
	// Output is the name of the entity output that fired.
	Output string
	// Activator is the entity that touched the volume.
	Activator Entity
	// Caller is the volume.
	Caller Entity
	// Value is the output value. Unused.
	Value any
	// Delay is the output delay in seconds. Unused.
	Delay float64
}

// Options configures a Fix.
type Options struct {
	// Cache holds captured orientations. A new cache is created if nil.
	Cache *AngleCache
	// Filter gates the fix by map. A nil filter is active on every map.
	Filter *MapFilter
	// Scheduler runs the deferred restore. Required.
	Scheduler TickScheduler
	// Map reports the current map name. Required.
	Map MapSource
	// Log receives debug output. Defaults to slog.Default().
	Log *slog.Logger
	// Legacy skips the owner and expiry checks on cached entries and never
	// re-validates the player when the restore runs.
	Legacy bool
}

// Fix captures a player's view when they enter a teleport volume and restores it
// one tick after they leave it.
type Fix struct {
	cache  *AngleCache
	filter *MapFilter
	sched  TickScheduler
	maps   MapSource
	log    *slog.Logger
	legacy bool

	// pending holds scheduled restores by slot
	pending   map[Slot]*restore
	pendingMu sync.Mutex
}

// NewFix creates a Fix. It panics if no scheduler or map source is configured.
func NewFix(opts Options) *Fix {
	if opts.Scheduler == nil {
		panic("anglefix: Fix requires a scheduler")
	}
	if opts.Map == nil {
		panic("anglefix: Fix requires a map source")
	}
	if opts.Cache == nil {
		opts.Cache = NewAngleCache(0)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Fix{
		cache:   opts.Cache,
		filter:  opts.Filter,
		sched:   opts.Scheduler,
		maps:    opts.Map,
		log:     opts.Log,
		legacy:  opts.Legacy,
		pending: make(map[Slot]*restore),
	}
}

// Cache returns the angle cache used by the fix.
func (f *Fix) Cache() *AngleCache {
	return f.cache
}

// OnStartTouch handles a player entering a teleport volume.
func (f *Fix) OnStartTouch(ev TouchEvent) HookResult {
	pawn, ctrl, id, ok := f.resolve(ev)
	if !ok {
		return Continue
	}

	o := pawn.EyeAngles()
	if f.legacy {
		f.cache.Capture(ctrl.Slot(), o)
	} else {
		f.cache.CaptureFor(ctrl.Slot(), id, f.sched.CurrentTick(), o)
	}
	f.log.Debug("anglefix: captured angles", "slot", ctrl.Slot(), "angles", o.String())
	return Continue
}

// OnEndTouch handles a player leaving a teleport volume.
func (f *Fix) OnEndTouch(ev TouchEvent) HookResult {
	pawn, ctrl, id, ok := f.resolve(ev)
	if !ok {
		return Continue
	}

	slot := ctrl.Slot()
	var o Orientation
	if f.legacy {
		o, ok = f.cache.ConsumeIfPresent(slot)
	} else {
		o, ok = f.cache.ConsumeFor(slot, id, f.sched.CurrentTick())
	}
	if !ok {
		return Continue
	}

	tick := f.sched.CurrentTick() + 1

	// A newer restore for the same slot supersedes the older one. The lock is
	// not held while scheduling, so RunOnTick may run the callback inline.
	r := &restore{}
	f.pendingMu.Lock()
	prev := f.pending[slot]
	f.pending[slot] = r
	prev.cancel()
	f.pendingMu.Unlock()

	handle := f.sched.RunOnTick(tick, func() {
		f.pendingMu.Lock()
		current := f.pending[slot] == r
		if current {
			delete(f.pending, slot)
		}
		f.pendingMu.Unlock()
		if !current {
			return
		}

		if !f.legacy && (!pawn.Valid() || !ctrl.Valid() || ctrl.SessionID() != id) {
			f.log.Debug("anglefix: dropped restore for departed player", "slot", slot)
			return
		}
		pawn.Teleport(o)
		f.log.Debug("anglefix: restored angles", "slot", slot, "angles", o.String(), "tick", tick)
	})

	f.pendingMu.Lock()
	r.handle = handle
	if handle == nil && f.pending[slot] == r {
		delete(f.pending, slot)
	}
	f.pendingMu.Unlock()
	return Continue
}

// restore is a scheduled restore. Only the restore currently stored for its
// slot may run; a replaced one is a no-op even if its task still fires.
type restore struct {
	handle *TaskHandle
}

// cancel revokes the scheduled task, if it has been scheduled yet.
// Callers must hold pendingMu.
func (r *restore) cancel() {
	if r != nil && r.handle != nil {
		r.handle.Cancel()
	}
}

// Forget drops any cached angles and cancels any pending restore for slot.
// Hosts call this when the player in slot disconnects.
func (f *Fix) Forget(slot Slot) {
	f.cache.Forget(slot)

	f.pendingMu.Lock()
	r := f.pending[slot]
	delete(f.pending, slot)
	r.cancel()
	f.pendingMu.Unlock()

	if r != nil {
		f.log.Debug("anglefix: cancelled pending restore", "slot", slot)
	}
}

// resolve applies the checks shared by both transitions.
func (f *Fix) resolve(ev TouchEvent) (Pawn, Controller, uuid.UUID, bool) {
	if ev.Activator == nil || ev.Activator.DesignerName() != PlayerDesignerName {
		return nil, nil, uuid.Nil, false
	}
	pawn, ok := ev.Activator.(Pawn)
	if !ok || !pawn.Valid() {
		return nil, nil, uuid.Nil, false
	}
	ctrl, ok := pawn.Controller()
	if !ok || ctrl == nil || !ctrl.Valid() {
		return nil, nil, uuid.Nil, false
	}
	id := ctrl.SessionID()
	if id == uuid.Nil {
		return nil, nil, uuid.Nil, false
	}
	if f.filter != nil && !f.filter.IsActive(f.maps.CurrentMap()) {
		return nil, nil, uuid.Nil, false
	}
	trigger, ok := ev.Caller.(Trigger)
	if !ok || trigger.UseLandmarkAngles() {
		return nil, nil, uuid.Nil, false
	}
	return pawn, ctrl, id, true
}

// PendingRestores returns the number of scheduled restores that have not run yet.
func (f *Fix) PendingRestores() int {
	f.pendingMu.Lock()
	defer f.pendingMu.Unlock()
	return len(f.pending)
}

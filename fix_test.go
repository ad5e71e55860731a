package anglefix

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	slot  Slot
	id    uuid.UUID
	valid bool
}

func (c *fakeController) Valid() bool          { return c.valid }
func (c *fakeController) Slot() Slot           { return c.slot }
func (c *fakeController) SessionID() uuid.UUID { return c.id }

type fakePawn struct {
	designer string
	valid    bool
	ctrl     *fakeController
	angles   Orientation
	restored []Orientation
}

func (p *fakePawn) DesignerName() string { return p.designer }
func (p *fakePawn) Valid() bool          { return p.valid }
func (p *fakePawn) EyeAngles() Orientation {
	return p.angles
}

func (p *fakePawn) Controller() (Controller, bool) {
	if p.ctrl == nil {
		return nil, false
	}
	return p.ctrl, true
}

func (p *fakePawn) Teleport(o Orientation) {
	p.angles = o
	p.restored = append(p.restored, o)
}

type fakeTrigger struct {
	landmark bool
}

func (t *fakeTrigger) DesignerName() string    { return TeleportDesignerName }
func (t *fakeTrigger) UseLandmarkAngles() bool { return t.landmark }

type plainEntity string

func (e plainEntity) DesignerName() string { return string(e) }

func newPlayer(slot Slot, angles Orientation) *fakePawn {
	return &fakePawn{
		designer: PlayerDesignerName,
		valid:    true,
		ctrl:     &fakeController{slot: slot, id: uuid.New(), valid: true},
		angles:   angles,
	}
}

func newTestFix(t *testing.T, mapName string, legacy bool, maps ...string) (*Fix, *Scheduler) {
	t.Helper()
	sched := NewScheduler(0, nil)
	f := NewFix(Options{
		Filter:    NewMapFilter(nil, maps...),
		Scheduler: sched,
		Map:       MapName(mapName),
		Legacy:    legacy,
	})
	return f, sched
}

func touch(p Entity, trigger Entity) TouchEvent {
	return TouchEvent{Activator: p, Caller: trigger}
}

func TestFixRestoresAnglesOneTickAfterExit(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(3, Orientation{Pitch: 10, Yaw: 90})
	trig := &fakeTrigger{}

	assert.Equal(t, Continue, f.OnStartTouch(touch(p, trig)))

	// The engine applies the destination angles during the teleport.
	p.angles = Orientation{Yaw: 180}
	assert.Equal(t, Continue, f.OnEndTouch(touch(p, trig)))

	assert.Empty(t, p.restored, "restore must not run in the same tick")
	assert.Equal(t, 1, f.PendingRestores())

	sched.Tick()

	require.Len(t, p.restored, 1)
	assert.Equal(t, Orientation{Pitch: 10, Yaw: 90}, p.restored[0])
	assert.Equal(t, 0, f.PendingRestores())
	assert.Equal(t, 0, f.Cache().Len())
}

func TestFixLandmarkAnglesAreLeftAlone(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(0, Orientation{Pitch: 10, Yaw: 90})
	trig := &fakeTrigger{landmark: true}

	f.OnStartTouch(touch(p, trig))
	assert.Equal(t, 0, f.Cache().Len())

	f.OnEndTouch(touch(p, trig))
	assert.Equal(t, 0, sched.Pending())

	sched.Tick()
	assert.Empty(t, p.restored)
}

func TestFixInactiveMapCapturesNothing(t *testing.T) {
	for _, landmark := range []bool{false, true} {
		f, sched := newTestFix(t, "surf_kitsune", false, "surf_reprise")
		p := newPlayer(0, Orientation{Pitch: 10, Yaw: 90})
		trig := &fakeTrigger{landmark: landmark}

		f.OnStartTouch(touch(p, trig))
		assert.Equal(t, 0, f.Cache().Len(), "landmark=%v", landmark)

		f.OnEndTouch(touch(p, trig))
		sched.Tick()
		assert.Empty(t, p.restored, "landmark=%v", landmark)
	}
}

func TestFixReadsMapOnEveryNotification(t *testing.T) {
	current := "surf_kitsune"
	sched := NewScheduler(0, nil)
	f := NewFix(Options{
		Filter:    NewMapFilter(nil, "surf_reprise"),
		Scheduler: sched,
		Map:       MapFunc(func() string { return current }),
	})
	p := newPlayer(0, Orientation{Yaw: 45})
	trig := &fakeTrigger{}

	f.OnStartTouch(touch(p, trig))
	assert.Equal(t, 0, f.Cache().Len())

	current = "surf_reprise"
	f.OnStartTouch(touch(p, trig))
	assert.Equal(t, 1, f.Cache().Len())
}

func TestFixRejectsInvalidActivators(t *testing.T) {
	trig := &fakeTrigger{}

	tests := map[string]Entity{
		"not a player": &fakePawn{designer: "prop_physics", valid: true,
			ctrl: &fakeController{id: uuid.New(), valid: true}},
		"invalid pawn": &fakePawn{designer: PlayerDesignerName, valid: false,
			ctrl: &fakeController{id: uuid.New(), valid: true}},
		"no controller": &fakePawn{designer: PlayerDesignerName, valid: true},
		"invalid controller": &fakePawn{designer: PlayerDesignerName, valid: true,
			ctrl: &fakeController{id: uuid.New(), valid: false}},
		"nil identity": &fakePawn{designer: PlayerDesignerName, valid: true,
			ctrl: &fakeController{id: uuid.Nil, valid: true}},
		"trigger as activator": trig,
		"player without pawn":  plainEntity(PlayerDesignerName),
	}

	for name, activator := range tests {
		t.Run(name, func(t *testing.T) {
			f, _ := newTestFix(t, "surf_reprise", false)
			assert.Equal(t, Continue, f.OnStartTouch(touch(activator, trig)))
			assert.Equal(t, 0, f.Cache().Len())
		})
	}
}

func TestFixRejectsNonTriggerCaller(t *testing.T) {
	f, _ := newTestFix(t, "surf_reprise", false)
	p := newPlayer(0, Orientation{Yaw: 1})

	f.OnStartTouch(TouchEvent{Activator: p, Caller: p})
	assert.Equal(t, 0, f.Cache().Len())

	f.OnStartTouch(TouchEvent{Activator: p})
	assert.Equal(t, 0, f.Cache().Len())
}

func TestFixExitWithoutCaptureIsNoop(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(0, Orientation{Yaw: 1})

	f.OnEndTouch(touch(p, &fakeTrigger{}))
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, f.PendingRestores())
}

func TestFixForgetCancelsPendingRestore(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(2, Orientation{Pitch: 10, Yaw: 90})
	trig := &fakeTrigger{}

	f.OnStartTouch(touch(p, trig))
	f.OnEndTouch(touch(p, trig))

	// The player disconnects before the restore runs.
	p.ctrl.valid = false
	f.Forget(2)

	sched.Tick()
	assert.Empty(t, p.restored)
	assert.Equal(t, 0, f.PendingRestores())
}

func TestFixSlotReuseDoesNotLeakAngles(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	trig := &fakeTrigger{}

	// The first player enters and disconnects without the exit firing.
	first := newPlayer(1, Orientation{Pitch: 10, Yaw: 90})
	f.OnStartTouch(touch(first, trig))
	first.ctrl.valid = false

	// A new player is assigned the same slot and passes through a volume whose
	// entry they never touched.
	second := newPlayer(1, Orientation{Yaw: 270})
	f.OnEndTouch(touch(second, trig))
	sched.Tick()

	assert.Empty(t, second.restored)
	assert.Equal(t, 0, f.Cache().Len(), "stale entry is discarded")
}

func TestFixRestoreSkippedWhenSlotChangesHands(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(4, Orientation{Pitch: 10, Yaw: 90})
	trig := &fakeTrigger{}

	f.OnStartTouch(touch(p, trig))
	f.OnEndTouch(touch(p, trig))

	// The controller now belongs to someone else.
	p.ctrl.id = uuid.New()
	sched.Tick()

	assert.Empty(t, p.restored)
}

func TestFixLegacyInheritsStaleEntry(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", true)
	trig := &fakeTrigger{}

	first := newPlayer(1, Orientation{Pitch: 10, Yaw: 90})
	f.OnStartTouch(touch(first, trig))

	second := newPlayer(1, Orientation{Yaw: 270})
	f.OnEndTouch(touch(second, trig))
	sched.Tick()

	require.Len(t, second.restored, 1)
	assert.Equal(t, Orientation{Pitch: 10, Yaw: 90}, second.restored[0])
}

func TestFixNewerRestoreSupersedesOlder(t *testing.T) {
	f, sched := newTestFix(t, "surf_reprise", false)
	p := newPlayer(0, Orientation{Yaw: 10})
	trig := &fakeTrigger{}

	f.OnStartTouch(touch(p, trig))
	f.OnEndTouch(touch(p, trig))

	p.angles = Orientation{Yaw: 20}
	f.OnStartTouch(touch(p, trig))
	f.OnEndTouch(touch(p, trig))

	sched.Tick()
	assert.Equal(t, []Orientation{{Yaw: 20}}, p.restored)
}

// inlineScheduler runs every task as soon as it is scheduled.
type inlineScheduler struct {
	tick uint64
}

func (s *inlineScheduler) CurrentTick() uint64 { return s.tick }

func (s *inlineScheduler) RunOnTick(tick uint64, fn func()) *TaskHandle {
	fn()
	return &TaskHandle{task: &scheduledTask{tick: tick, fn: fn}}
}

func TestFixWithInlineScheduler(t *testing.T) {
	f := NewFix(Options{
		Scheduler: &inlineScheduler{tick: 7},
		Map:       MapName("surf_reprise"),
	})
	p := newPlayer(0, Orientation{Yaw: 10})
	trig := &fakeTrigger{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.OnStartTouch(touch(p, trig))
		f.OnEndTouch(touch(p, trig))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnEndTouch blocked on a scheduler that runs tasks inline")
	}
	assert.Equal(t, []Orientation{{Yaw: 10}}, p.restored)
	assert.Equal(t, 0, f.PendingRestores())

	f.Forget(0)
	assert.Equal(t, 0, f.PendingRestores())
}

func TestFixExpiredEntryIsNotRestored(t *testing.T) {
	sched := NewScheduler(0, nil)
	f := NewFix(Options{
		Cache:     NewAngleCache(2),
		Scheduler: sched,
		Map:       MapName("surf_reprise"),
	})
	p := newPlayer(0, Orientation{Yaw: 10})
	trig := &fakeTrigger{}

	f.OnStartTouch(touch(p, trig))
	for range 3 {
		sched.Tick()
	}
	f.OnEndTouch(touch(p, trig))
	sched.Tick()

	assert.Empty(t, p.restored)
}

func TestNewFixRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewFix(Options{Map: MapName("x")}) })
	assert.Panics(t, func() { NewFix(Options{Scheduler: NewScheduler(0, nil)}) })
}

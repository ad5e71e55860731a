package anglefix

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
)

// Session represents a connected player and the slot they occupy.
//
// Sessions are created when players join and closed when they leave. A closed
// session is no longer Valid, which stops any restore still queued for it.
type Session struct {
	// handle is the persistent entity handle for the player
	handle *world.EntityHandle

	// uuid is cached for fast lookup
	uuid uuid.UUID

	// name is cached for fast lookup
	name string

	// slot is assigned on join and released on close
	slot Slot

	// sessions is the registry that owns this session
	sessions *Sessions

	// closed indicates if the session has been closed
	closed atomic.Bool
}

// Compile-time check that Session implements Controller.
var _ Controller = (*Session)(nil)

// Handle returns the underlying EntityHandle.
func (s *Session) Handle() *world.EntityHandle {
	return s.handle
}

// UUID returns the player's UUID.
func (s *Session) UUID() uuid.UUID {
	return s.uuid
}

// SessionID returns the player's UUID.
func (s *Session) SessionID() uuid.UUID {
	return s.uuid
}

// Name returns the player's name.
func (s *Session) Name() string {
	return s.name
}

// Slot returns the slot the player occupies.
func (s *Session) Slot() Slot {
	return s.slot
}

// Valid reports whether the session is still open.
func (s *Session) Valid() bool {
	return !s.closed.Load()
}

// Closed returns true if the session has been closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Exec runs a function within the session's world transaction.
// Returns false if the player is offline or the session is closed.
func (s *Session) Exec(fn func(tx *world.Tx, p *player.Player)) bool {
	if s.closed.Load() || s.handle == nil {
		return false
	}

	return s.handle.ExecWorld(func(tx *world.Tx, e world.Entity) {
		p, ok := e.(*player.Player)
		if !ok {
			return
		}
		fn(tx, p)
	})
}

// String returns a string representation of the session for debugging.
func (s *Session) String() string {
	return fmt.Sprintf("Session{Name: %s, UUID: %s, Slot: %d}", s.name, s.uuid, s.slot)
}

// Close closes the session and frees its slot. Closing twice is a no-op.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return // Already closed
	}
	if s.sessions != nil {
		s.sessions.remove(s)
	}
}

// Sessions assigns slots to connected players and indexes them by slot and UUID.
// The smallest free slot is handed out on join, so slots are reused after a
// player leaves.
type Sessions struct {
	mu     sync.RWMutex
	bySlot map[Slot]*Session
	byUUID map[uuid.UUID]*Session

	// onLeave is called after a session is removed, outside the lock
	onLeave []func(*Session)
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		bySlot: make(map[Slot]*Session),
		byUUID: make(map[uuid.UUID]*Session),
	}
}

// OnLeave registers fn to be called whenever a session closes.
// Hooks must be registered before players join.
func (r *Sessions) OnLeave(fn func(*Session)) {
	r.mu.Lock()
	r.onLeave = append(r.onLeave, fn)
	r.mu.Unlock()
}

// NewSession creates a session for p in the lowest free slot.
func (r *Sessions) NewSession(p *player.Player) (*Session, error) {
	return r.join(p.H(), p.UUID(), p.Name())
}

// join registers a session for the given identity.
func (r *Sessions) join(h *world.EntityHandle, id uuid.UUID, name string) (*Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("anglefix: player %q has no identity", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUUID[id]; ok {
		return nil, fmt.Errorf("anglefix: player %s already has a session", id)
	}

	slot := Slot(0)
	for {
		if _, taken := r.bySlot[slot]; !taken {
			break
		}
		slot++
	}

	s := &Session{
		handle:   h,
		uuid:     id,
		name:     name,
		slot:     slot,
		sessions: r,
	}
	r.bySlot[slot] = s
	r.byUUID[id] = s
	return s, nil
}

// remove unregisters a session and runs the leave hooks.
func (r *Sessions) remove(s *Session) {
	r.mu.Lock()
	if r.bySlot[s.slot] == s {
		delete(r.bySlot, s.slot)
	}
	if r.byUUID[s.uuid] == s {
		delete(r.byUUID, s.uuid)
	}
	hooks := r.onLeave
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}

// BySlot returns the session occupying slot.
func (r *Sessions) BySlot(slot Slot) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySlot[slot]
}

// ByUUID returns the session for a player UUID.
func (r *Sessions) ByUUID(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUUID[id]
}

// Count returns the number of open sessions.
func (r *Sessions) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySlot)
}

// All returns a snapshot of all open sessions.
func (r *Sessions) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.bySlot))
	for _, s := range r.bySlot {
		sessions = append(sessions, s)
	}
	return sessions
}

// CloseAll closes every open session.
func (r *Sessions) CloseAll() {
	for _, s := range r.All() {
		s.Close()
	}
}

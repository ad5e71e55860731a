package anglefix

import (
	"log/slog"
	"sync"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
)

// Plugin is the central coordinator for a Dragonfly server.
// It owns the map filter, the angle cache, the tick scheduler and the session
// registry, and keeps one Fix per world. The world name is the map name the
// filter is matched against.
type Plugin struct {
	log        *slog.Logger
	configPath string
	legacy     bool

	filter    *MapFilter
	cache     *AngleCache
	scheduler *Scheduler
	sessions  *Sessions
	watcher   *Watcher

	// volumes holds the teleport volumes of each world
	volumes   map[*world.World][]*Volume
	volumesMu sync.RWMutex

	// fixes holds the Fix of each world, created on first use
	fixes   map[*world.World]*Fix
	fixesMu sync.Mutex
}

// newPlugin creates a plugin around already-built components.
func newPlugin(log *slog.Logger, configPath string, legacy bool, filter *MapFilter, cache *AngleCache, sched *Scheduler) *Plugin {
	pl := &Plugin{
		log:        log,
		configPath: configPath,
		legacy:     legacy,
		filter:     filter,
		cache:      cache,
		scheduler:  sched,
		sessions:   NewSessions(),
		volumes:    make(map[*world.World][]*Volume),
		fixes:      make(map[*world.World]*Fix),
	}
	pl.sessions.OnLeave(pl.forget)
	return pl
}

// Filter returns the map filter.
func (pl *Plugin) Filter() *MapFilter {
	return pl.filter
}

// Cache returns the angle cache shared by every world.
func (pl *Plugin) Cache() *AngleCache {
	return pl.cache
}

// Scheduler returns the tick scheduler.
func (pl *Plugin) Scheduler() *Scheduler {
	return pl.scheduler
}

// Sessions returns the session registry.
func (pl *Plugin) Sessions() *Sessions {
	return pl.sessions
}

// AddVolume places a teleport volume in w.
func (pl *Plugin) AddVolume(w *world.World, v *Volume) {
	pl.volumesMu.Lock()
	pl.volumes[w] = append(pl.volumes[w], v)
	pl.volumesMu.Unlock()
}

// RemoveVolumes removes every teleport volume from w.
func (pl *Plugin) RemoveVolumes(w *world.World) {
	pl.volumesMu.Lock()
	delete(pl.volumes, w)
	pl.volumesMu.Unlock()
}

// Volumes returns the teleport volumes in w.
func (pl *Plugin) Volumes(w *world.World) []*Volume {
	pl.volumesMu.RLock()
	defer pl.volumesMu.RUnlock()
	return pl.volumes[w]
}

// Fix returns the Fix for w, creating it on first use.
func (pl *Plugin) Fix(w *world.World) *Fix {
	pl.fixesMu.Lock()
	defer pl.fixesMu.Unlock()

	if f, ok := pl.fixes[w]; ok {
		return f
	}
	f := NewFix(Options{
		Cache:     pl.cache,
		Filter:    pl.filter,
		Scheduler: pl.scheduler,
		Map:       MapFunc(w.Name),
		Log:       pl.log,
		Legacy:    pl.legacy,
	})
	pl.fixes[w] = f
	return f
}

// NewSession creates a session for a joining player.
// The returned session should be passed to NewHandler and the handler to player.Handle().
func (pl *Plugin) NewSession(p *player.Player) (*Session, error) {
	s, err := pl.sessions.NewSession(p)
	if err != nil {
		return nil, err
	}
	pl.log.Debug("anglefix: session opened", "player", s.Name(), "slot", s.Slot())
	return s, nil
}

// NewHandler creates the player.Handler for a session.
func (pl *Plugin) NewHandler(s *Session) *Handler {
	return &Handler{
		plugin:   pl,
		session:  s,
		touching: make(map[*Volume]struct{}),
	}
}

// Reload re-reads the config file into the map filter.
// On failure the filter keeps its current contents.
func (pl *Plugin) Reload() error {
	return pl.filter.Load(pl.configPath)
}

// forget drops the state held for a session's slot in every world.
// Legacy plugins keep it so a later player in the slot can inherit it.
func (pl *Plugin) forget(s *Session) {
	if pl.legacy {
		return
	}
	pl.cache.Forget(s.Slot())

	pl.fixesMu.Lock()
	fixes := make([]*Fix, 0, len(pl.fixes))
	for _, f := range pl.fixes {
		fixes = append(fixes, f)
	}
	pl.fixesMu.Unlock()

	for _, f := range fixes {
		f.Forget(s.Slot())
	}
}

// Shutdown stops the watcher and scheduler and closes all sessions.
func (pl *Plugin) Shutdown() {
	if pl.watcher != nil {
		if err := pl.watcher.Close(); err != nil {
			pl.log.Warn("anglefix: failed to close config watcher", "error", err)
		}
	}
	pl.scheduler.Stop()
	pl.sessions.CloseAll()
}

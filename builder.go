package anglefix

import (
	"context"
	"log/slog"
	"time"

	"github.com/df-mc/dragonfly/server/world"
)

// Builder configures the plugin before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	configPath string
	log        *slog.Logger
	tickRate   time.Duration
	entryTTL   uint64
	legacy     bool
	watch      bool
	volumes    []volumeRegistration
}

type volumeRegistration struct {
	world  *world.World
	volume *Volume
}

// NewBuilder creates a new plugin builder.
func NewBuilder() *Builder {
	return &Builder{
		configPath: DefaultConfigPath,
		tickRate:   DefaultTickRate,
	}
}

// ConfigPath sets the config file holding the target maps.
func (b *Builder) ConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// Logger sets the logger. Defaults to slog.Default().
func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// TickRate sets the interval between scheduler ticks.
func (b *Builder) TickRate(d time.Duration) *Builder {
	b.tickRate = d
	return b
}

// EntryTTL sets how many ticks a captured orientation stays valid.
// Zero, the default, keeps entries until they are consumed or the player leaves.
func (b *Builder) EntryTTL(ticks uint64) *Builder {
	b.entryTTL = ticks
	return b
}

// Legacy disables the owner and expiry checks, restoring the unguarded
// behaviour where a stale capture can be restored onto the next player in the slot.
func (b *Builder) Legacy() *Builder {
	b.legacy = true
	return b
}

// Watch reloads the map filter whenever the config file changes.
func (b *Builder) Watch() *Builder {
	b.watch = true
	return b
}

// Volume places a teleport volume in w.
func (b *Builder) Volume(w *world.World, v *Volume) *Builder {
	b.volumes = append(b.volumes, volumeRegistration{w, v})
	return b
}

// Init initializes the plugin with the configured settings and starts the scheduler.
// A config file that cannot be loaded is logged and leaves the fix active on every map.
// The watcher, if enabled, stops when ctx is done.
func (b *Builder) Init(ctx context.Context) *Plugin {
	log := b.log
	if log == nil {
		log = slog.Default()
	}

	filter := NewMapFilter(log)
	_ = filter.Load(b.configPath)

	pl := newPlugin(log, b.configPath, b.legacy, filter, NewAngleCache(b.entryTTL), NewScheduler(b.tickRate, log))

	for _, reg := range b.volumes {
		pl.AddVolume(reg.world, reg.volume)
	}

	if b.watch {
		w, err := Watch(ctx, b.configPath, filter, log)
		if err != nil {
			log.Error("anglefix: config hot reload disabled", "path", b.configPath, "error", err)
		} else {
			pl.watcher = w
		}
	}

	pl.scheduler.Start()
	return pl
}

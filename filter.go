package anglefix

import (
	"log/slog"
	"slices"
	"sync"
)

// MapFilter is the set of map names the fix is active on.
// An empty filter is active on every map. Names match exactly and are case-sensitive.
type MapFilter struct {
	mu    sync.RWMutex
	names map[string]struct{}
	log   *slog.Logger
}

// NewMapFilter creates a filter holding names. With no names it is active everywhere.
func NewMapFilter(log *slog.Logger, names ...string) *MapFilter {
	if log == nil {
		log = slog.Default()
	}
	f := &MapFilter{log: log}
	f.Set(names)
	return f
}

// IsActive reports whether the fix applies on mapName.
func (f *MapFilter) IsActive(mapName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.names) == 0 {
		return true
	}
	_, ok := f.names[mapName]
	return ok
}

// Set replaces the filter contents.
func (f *MapFilter) Set(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	f.mu.Lock()
	f.names = set
	f.mu.Unlock()
}

// Names returns the configured map names in sorted order.
func (f *MapFilter) Names() []string {
	f.mu.RLock()
	names := make([]string, 0, len(f.names))
	for n := range f.names {
		names = append(names, n)
	}
	f.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Load reads the map list from the config file at path, creating the file with
// defaults if it is missing. On failure the error is logged and the filter keeps
// its previous contents.
func (f *MapFilter) Load(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		f.log.Error("anglefix: failed to load config", "path", path, "error", err)
		return err
	}

	f.Set(cfg.TargetMaps)
	f.log.Info("anglefix: loaded target maps", "path", path, "maps", f.Names())
	return nil
}

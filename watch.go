package anglefix

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the file must be quiet before it is reloaded.
const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a MapFilter whenever its config file changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	filter  *MapFilter
	log     *slog.Logger

	// Reloaded receives the result of every reload. It is buffered and never blocks the watcher.
	Reloaded chan error

	closeCh chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// Watch starts watching the directory holding path and reloads filter when the
// file is written or created. The watcher stops and releases its file handles
// when ctx is done or Close is called.
func Watch(ctx context.Context, path string, filter *MapFilter, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		filter:   filter,
		log:      log,
		Reloaded: make(chan error, 4),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Close stops the watcher and waits for it to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.doneCh
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// Reload on the trailing edge so a truncate+write pair is read once, complete.
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			timer.Reset(reloadDebounce)

		case <-timer.C:
			w.log.Info("anglefix: config changed, reloading", "path", w.path)
			w.notify(w.filter.Load(w.path))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("anglefix: config watcher error", "path", w.path, "error", err)

		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) notify(err error) {
	select {
	case w.Reloaded <- err:
	default:
	}
}

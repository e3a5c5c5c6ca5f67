package dataset

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads a local Source whenever either table changes on disk.
// Directories are watched rather than files so that editors which replace
// the file by rename are still observed.
type Watcher struct {
	loader   *Loader
	src      Source
	debounce time.Duration
	onReload func(*Dataset, error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	files   map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher prepares a watcher for src. onReload receives every reload
// result; a failed reload leaves the previously loaded dataset in place.
func NewWatcher(l *Loader, src Source, debounce time.Duration, onReload func(*Dataset, error)) (*Watcher, error) {
	if !src.Local() {
		return nil, tserrors.New(tserrors.ErrCodeUnsupported, "only local dataset files can be watched")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	files := map[string]bool{}
	for _, loc := range []string{src.Tracts, src.Years} {
		abs, err := filepath.Abs(localPath(loc))
		if err != nil {
			fw.Close()
			return nil, err
		}
		files[abs] = true
	}
	return &Watcher{
		loader:   l,
		src:      src,
		debounce: debounce,
		onReload: onReload,
		watcher:  fw,
		files:    files,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	dirs := map[string]bool{}
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			return tserrors.Wrap(tserrors.ErrCodeFileNotFound, err, "watch %s", d)
		}
		w.loader.Logger.Debug("watching dataset directory", "dir", d)
	}

	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.loader.Logger.Debug("dataset file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.loader.Logger.Warn("dataset watch error", "err", err)
		case <-timer.C:
			ds, err := w.loader.Load(ctx, w.src)
			if err != nil {
				w.loader.Logger.Error("dataset reload failed", "err", err)
			}
			if w.onReload != nil {
				w.onReload(ds, err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	return err == nil && w.files[abs]
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc receives the reloaded file, or the error that prevented it.
type ChangeFunc func(f File, err error)

// Watcher reloads a configuration file when it changes on disk.
//
// The parent directory is watched rather than the file so that editors
// which replace the file by rename are still observed.
type Watcher struct {
	path     string
	onChange ChangeFunc
	debounce time.Duration
	fs       *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	closed  bool
	done    chan struct{}
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a reload. Non-positive values
// are ignored.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch creates a Watcher for path. Call Start to begin delivering changes
// and Close to stop.
func Watch(path string, onChange ChangeFunc, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrLoad)
	}
	if onChange == nil {
		return nil, errors.New("config: nil change callback")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("config: watch %s: %w", dir, err), fsw.Close())
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		fs:       fsw,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start runs the event loop in a background goroutine. It is a no-op after
// the first call or after Close.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run()
}

// Close stops the watcher. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.done)
	w.mu.Unlock()

	return w.fs.Close()
}

func (w *Watcher) run() {
	name := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.onChange(File{}, fmt.Errorf("config: watch: %w", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	f, err := Load(w.path)
	w.onChange(f, err)
}

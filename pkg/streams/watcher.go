package streams

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps an in-memory copy of a stream manifest and reloads it
// when the file changes on disk. A reload failure keeps the previous
// manifest.
type Watcher struct {
	l    *zap.SugaredLogger
	path string

	mu      sync.Mutex
	current Artifacts
	fw      *fsnotify.Watcher
	done    chan struct{}
	running bool
}

func NewWatcher(l *zap.SugaredLogger, path string) *Watcher {
	return &Watcher{l: l, path: path}
}

// Start loads the manifest once and begins watching its directory.
// Watching the directory instead of the file survives editors that
// replace the file on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	a, err := Load(w.path)
	if err != nil {
		return err
	}

	w.current = a

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error while creating manifest watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		if cerr := fw.Close(); cerr != nil {
			w.l.Errorf("error while closing manifest watcher: %s", cerr.Error())
		}

		return fmt.Errorf("error while watching manifest dir: %w", err)
	}

	w.fw = fw
	w.done = make(chan struct{})
	w.running = true

	go w.loop()

	w.l.Infof("watching stream manifest %s", w.path)

	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}

			if ev.Name != w.path {
				continue
			}

			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				if err := w.Reload(); err != nil {
					w.l.Warnf("manifest reload failed: %s", err.Error())
				}
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			w.l.Errorf("manifest watcher error: %s", err.Error())
		}
	}
}

// Reload re-reads the manifest from disk.
func (w *Watcher) Reload() error {
	a, err := Load(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = a
	w.mu.Unlock()

	w.l.Infof("reloaded stream manifest %s", w.path)

	return nil
}

// Artifacts returns the most recently loaded manifest.
func (w *Watcher) Artifacts() Artifacts {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.current
}

// Stop closes the watcher. Stop on a stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()

	if !w.running {
		w.mu.Unlock()

		return nil
	}

	w.running = false
	fw, done := w.fw, w.done

	// release the lock before waiting: the event loop may be inside
	// Reload, which needs it
	w.mu.Unlock()

	err := fw.Close()

	<-done

	if err != nil {
		return fmt.Errorf("error while closing manifest watcher: %w", err)
	}

	return nil
}

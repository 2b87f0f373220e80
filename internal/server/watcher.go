package server

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/handlers"
)

// Watcher watches the config file and hot-reloads the gate on change.
// It watches the parent directory, not the file: editors replace config
// files via rename, which drops a direct file watch.
type Watcher struct {
	srv      *Server
	cfgPath  string
	reload   func() (*handlers.Gate, error)
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Debounce rapid file changes
	debounce     time.Duration
	pendingTimer *time.Timer
	timerMu      sync.Mutex
}

// NewWatcher creates a config watcher. reload rebuilds the gate from the
// config file; a failed reload keeps the previous gate.
func NewWatcher(srv *Server, cfgPath string, reload func() (*handlers.Gate, error)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfgPath)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return &Watcher{
		srv:      srv,
		cfgPath:  abs,
		reload:   reload,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the config file's directory.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.cfgPath)
	if err := w.watcher.Add(dir); err != nil {
		// Directory might not exist yet; the built-in policy still applies.
		log.Warn("cannot watch config directory %s: %v", dir, err)
		return nil
	}

	w.wg.Add(1)
	go w.run()

	log.Info("watching config file: %s", w.cfgPath)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.timerMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.cfgPath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	log.Debug("config file changed: %s (%s)", filepath.Base(event.Name), event.Op)
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.doReload)
}

func (w *Watcher) doReload() {
	log.Info("hot reloading config...")
	gate, err := w.reload()
	if err != nil {
		// Keep ruling on the last good policy.
		log.Error("config reload failed, keeping previous gate: %v", err)
		return
	}
	w.srv.SetGate(gate)
}

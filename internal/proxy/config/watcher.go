package config

import (
	"log"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves the current Rules snapshot and reloads it whenever the
// backing file changes, in the event/error channel pump style of
// internal/runtime/vfs's fsnotify wrapper.
type Watcher struct {
	path    string
	current atomic.Value // holds Rules
	w       *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path once and starts watching it for changes. A
// missing file is not an error: it is treated as an empty Rules value.
// The watch on a missing file cannot be established; that failure is
// logged, and the empty Rules are served until the Watcher is closed,
// even if the file is created later.
func NewWatcher(path string) (*Watcher, error) {
	cw := &Watcher{path: path, done: make(chan struct{})}

	if rules, err := loadRules(path); err == nil {
		cw.current.Store(rules)
	} else {
		cw.current.Store(Rules{})
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		// The file may not exist yet; watch its directory is out of
		// scope for this reference implementation -- log and continue
		// serving the zero-value Rules until a reload is possible.
		log.Printf("[config] could not watch %s: %v (serving default rules)", path, err)
	}
	cw.w = fw

	go cw.loop()
	return cw, nil
}

func (cw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rules, err := loadRules(cw.path)
			if err != nil {
				log.Printf("[config] reload of %s failed, keeping previous rules: %v", cw.path, err)
				continue
			}
			cw.current.Store(rules)
			log.Printf("[config] reloaded rewrite rules from %s", cw.path)
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watch error: %v", err)
		case <-cw.done:
			return
		}
	}
}

// Rules returns the current snapshot. Safe for concurrent use.
func (cw *Watcher) Rules() Rules {
	v, _ := cw.current.Load().(Rules)
	return v
}

// Denied reports whether method is denied under the current snapshot,
// letting a Watcher be used directly as a dispatch.RuleSource.
func (cw *Watcher) Denied(method string) bool {
	return cw.Rules().Denied(method)
}

// Close stops watching and releases the underlying OS resources.
func (cw *Watcher) Close() error {
	close(cw.done)
	return cw.w.Close()
}

package module

import (
	"github.com/fsnotify/fsnotify"
)

// Hint is what a ScriptWatcher reports: a file under a loaded module's
// directory changed on disk. It is purely informational — orgloop
// never auto-reloads a module; an operator decides whether to call the
// control API's reload endpoint.
type Hint struct {
	ModuleName string
	Path       string
}

// ScriptWatcher watches a module's directory for changes to the script
// files its transforms/prompt files reference, so the runtime can log
// a module.error hint pointing an operator at the control API's reload
// endpoint.
type ScriptWatcher struct {
	watcher *fsnotify.Watcher
	onHint  func(Hint)
}

// NewScriptWatcher starts watching dir for moduleName, invoking onHint
// for every write/create/remove event. Returns nil, err if the
// underlying inotify/kqueue watch cannot be established; callers
// should treat that as non-fatal (the hint is a convenience, not a
// correctness requirement).
func NewScriptWatcher(moduleName, dir string, onHint func(Hint)) (*ScriptWatcher, error) {
	if dir == "" {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	sw := &ScriptWatcher{watcher: w, onHint: onHint}
	go sw.run(moduleName)
	return sw, nil
}

func (sw *ScriptWatcher) run(moduleName string) {
	for {
		select {
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				sw.onHint(Hint{ModuleName: moduleName, Path: ev.Name})
			}
		case _, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (sw *ScriptWatcher) Close() error {
	if sw == nil || sw.watcher == nil {
		return nil
	}
	return sw.watcher.Close()
}

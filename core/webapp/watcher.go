package webapp

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/appserver/core/logger"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// watch observes the descriptor directory and its lib subdirectory. The
// first change schedules exactly one reload; later events only mark the
// application dirty, which matters if the reload keeps it in place.
func (a *Application) watch() error {
	dir := filepath.Dir(a.DescriptorPath())
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if lib := filepath.Join(dir, "lib"); isDir(lib) {
		if err := w.Add(lib); err != nil {
			a.logger.Warn("lib directory not watched", logger.Error(err))
		}
	}

	a.watcher = w
	a.watchDone = make(chan struct{})
	go a.watchLoop(w, a.watchDone)
	return nil
}

func (a *Application) watchLoop(w *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&watchedOps == 0 {
				continue
			}
			a.triggerReload(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			a.logger.Warn("change watcher error", logger.Error(err))
		}
	}
}

// triggerReload starts the reload goroutine once per application.
func (a *Application) triggerReload(changed string) {
	if a.onReload == nil || a.State() != StateRunning {
		return
	}
	if !a.reloading.CompareAndSwap(false, true) {
		a.dirty.Store(true)
		return
	}
	a.dirty.Store(false)
	a.logger.Info("change detected, scheduling reload",
		logger.Event("reload"),
		logger.Path(changed),
	)
	go func() {
		if a.debounce > 0 {
			time.Sleep(a.debounce)
		}
		a.onReload(a)
	}()
}

func (a *Application) stopWatch() {
	if a.watcher == nil {
		return
	}
	_ = a.watcher.Close()
	<-a.watchDone
	a.watcher = nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

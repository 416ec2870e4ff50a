package auth

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchPasswordFile reloads the admin password when its file changes on
// disk, so rotations do not need a restart. Events are debounced because
// editors and secret managers tend to fire several per update.
func (a *Authenticator) WatchPasswordFile() error {
	if a.passwordFile == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(a.passwordFile); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						a.logger.Error("watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				if err := a.reloadPassword(); err != nil {
					a.logger.Error("password reload failed", "err", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				a.logger.Error("watch error", "err", err)
			}
		}
	}()
	return nil
}

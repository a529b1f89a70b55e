package watcher

import (
	"time"

	"gotidy/pkg/models"
)

/*
Debouncer:
  - every event for a path resets that path's timer
  - the event is sent once the path has been quiet for Debounce
*/
func (w *Watcher) debouncedSend(path, operation string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}

	w.debouncer[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.debouncer, path)
		w.debounceMu.Unlock()

		w.send(models.FileEvent{
			Path:      path,
			Operation: operation,
			Timestamp: time.Now(),
		})
	})
}

func (w *Watcher) Changes() <-chan models.FileEvent {
	return w.changeChan
}

func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}

func (w *Watcher) Close() error {
	w.cancel()

	w.debounceMu.Lock()
	for path, timer := range w.debouncer {
		timer.Stop()
		delete(w.debouncer, path)
	}
	w.debounceMu.Unlock()

	return w.fsNotifyWatcher.Close()
}

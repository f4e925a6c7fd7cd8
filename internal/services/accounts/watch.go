package accounts

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 100 * time.Millisecond

func (r *Registry) watchLoop(w *fsnotify.Watcher, delay time.Duration) {
	defer close(r.done)

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if r.file.isTarget(ev) {
				timer.Reset(delay)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.publish(Event{Kind: Failed, Err: err})

		case <-timer.C:
			r.reload()

		case <-r.stop:
			return
		}
	}
}

// reload picks up an outside edit. Our own saves also land here.
func (r *Registry) reload() {
	doc, err := r.file.read()
	if err != nil {
		logger.Warn("failed to reload accounts", "path", r.file.path, "error", err)
		r.publish(Event{Kind: Failed, Err: err})
		return
	}
	r.replace(doc)
	r.publish(Event{Kind: Reloaded})
}

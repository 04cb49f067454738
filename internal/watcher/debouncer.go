package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer collects changed paths and emits them as one sorted batch
// once no new path has arrived for the window.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	out     chan []string
	stopped bool
}

// NewDebouncer returns a Debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]struct{}),
		out:     make(chan []string, 4),
	}
}

// Add records a change to path and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]string, 0, len(d.pending))
	for p := range d.pending {
		batch = append(batch, p)
	}
	sort.Strings(batch)
	d.pending = make(map[string]struct{})

	select {
	case d.out <- batch:
	default:
		// a full re-ingest is already queued; it will see these changes
		slog.Debug("debouncer output full, dropping batch", slog.Int("paths", len(batch)))
	}
}

// Output returns the batch channel. It is closed by Stop.
func (d *Debouncer) Output() <-chan []string { return d.out }

// Stop cancels any pending flush and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}

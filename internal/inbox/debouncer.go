package inbox

import (
	"log/slog"
	"sync"
	"time"
)

// op is what happened to a capture file.
type op int

const (
	opWrite op = iota
	opRemove
)

// debouncer coalesces bursts of events per path. A writer producing a file
// in several chunks yields one batch once the file has been quiet for the
// window. A path written then removed inside the window is dropped.
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]op
	timer   *time.Timer
	output  chan []string
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]op),
		output:  make(chan []string, 16),
	}
}

func (d *debouncer) add(path string, o op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.pending[path]; ok && prev == opWrite && o == opRemove {
		delete(d.pending, path)
	} else {
		d.pending[path] = o
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	paths := make([]string, 0, len(d.pending))
	for p, o := range d.pending {
		if o == opWrite {
			paths = append(paths, p)
		}
	}
	d.pending = make(map[string]op)
	if len(paths) == 0 {
		return
	}

	select {
	case d.output <- paths:
	default:
		// The next directory scan picks these files up again.
		slog.Warn("inbox_batch_dropped", slog.Int("files", len(paths)))
	}
}

func (d *debouncer) batches() <-chan []string {
	return d.output
}

// stop cancels pending flushes and closes the output. Safe to call twice.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

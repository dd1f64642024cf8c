// Package inbox indexes page captures dropped into a directory.
//
// The browser-side helper writes one JSON document per visited page. The
// watcher picks each *.json file up once writes have settled, hands the
// decoded capture to the backend, and removes the file. Files that can
// never be indexed are renamed with a .rejected suffix; files that failed
// for a transient reason stay in place and are retried on the next scan.
//
// fsnotify is the primary event source. When it cannot be initialized the
// watcher falls back to rescanning the directory periodically.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/fttf/internal/backend"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

const (
	// DefaultDebounce is how long a file must be quiet before it is read.
	DefaultDebounce = 250 * time.Millisecond
	// DefaultScanInterval is the rescan period. Rescans pick up files whose
	// events were missed and retry transient failures.
	DefaultScanInterval = time.Minute

	captureExt  = ".json"
	rejectedExt = ".rejected"
)

// Indexer stores page captures. *backend.Backend implements it.
type Indexer interface {
	IndexPage(ctx context.Context, p backend.PagePayload) (backend.IndexResult, error)
}

// Stats counts files handled since Start.
type Stats struct {
	Indexed  uint64 `json:"indexed"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

// Watcher feeds capture files to an Indexer.
type Watcher struct {
	dir      string
	indexer  Indexer
	debounce time.Duration
	scan     time.Duration
	logger   *slog.Logger
	// forcePolling skips fsnotify. Used by tests.
	forcePolling bool

	// handling serializes processing of the same file from a scan and an event.
	handling sync.Mutex

	indexed  atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a file is read.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithScanInterval sets the periodic rescan period.
func WithScanInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.scan = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPolling disables fsnotify and relies on rescans.
func WithPolling() Option {
	return func(w *Watcher) { w.forcePolling = true }
}

// New creates a watcher over dir.
func New(dir string, indexer Indexer, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		indexer:  indexer,
		debounce: DefaultDebounce,
		scan:     DefaultScanInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Indexed:  w.indexed.Load(),
		Rejected: w.rejected.Load(),
		Failed:   w.failed.Load(),
	}
}

// Run processes files already in the directory, then watches it until ctx
// is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return apperrors.IOError("failed to create inbox directory", err).WithDetail("dir", w.dir)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	mode := "polling"
	if !w.forcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fsw.Add(w.dir)
		}
		if err != nil {
			w.logger.Warn("inbox_fsnotify_unavailable", slog.String("error", err.Error()))
			if fsw != nil {
				_ = fsw.Close()
			}
		} else {
			defer fsw.Close()
			events, errs, mode = fsw.Events, fsw.Errors, "fsnotify"
		}
	}

	deb := newDebouncer(w.debounce)
	defer deb.stop()

	w.logger.Info("inbox_watching", slog.String("dir", w.dir), slog.String("mode", mode))
	w.Scan(ctx)

	ticker := time.NewTicker(w.scan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox_stopped", slog.Any("stats", w.Stats()))
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isCapture(ev.Name) {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
				deb.add(ev.Name, opWrite)
			case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
				deb.add(ev.Name, opRemove)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("inbox_watch_error", slog.String("error", err.Error()))

		case paths := <-deb.batches():
			sort.Strings(paths)
			for _, p := range paths {
				if ctx.Err() != nil {
					break
				}
				w.Process(ctx, p)
			}

		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan processes every capture file currently in the directory, oldest
// name first.
func (w *Watcher) Scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox_scan_failed", slog.String("dir", w.dir), slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() || !isCapture(e.Name()) {
			continue
		}
		w.Process(ctx, filepath.Join(w.dir, e.Name()))
	}
}

// Process indexes a single capture file. Indexed files are removed,
// undecodable or unindexable files are rejected, and anything else is left
// for a later retry.
func (w *Watcher) Process(ctx context.Context, path string) {
	w.handling.Lock()
	defer w.handling.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.failed.Add(1)
		w.logger.Warn("inbox_read_failed", slog.String("file", path), slog.String("error", err.Error()))
		return
	}

	payload, err := decodeCapture(data)
	if err != nil {
		w.reject(path, err)
		return
	}

	res, err := w.indexer.IndexPage(ctx, payload)
	if err != nil {
		if permanent(err) {
			w.reject(path, err)
			return
		}
		w.failed.Add(1)
		w.logger.Warn("inbox_index_failed",
			append(apperrors.LogAttrs(err), slog.String("file", path))...)
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("inbox_remove_failed", slog.String("file", path), slog.String("error", err.Error()))
	}
	w.indexed.Add(1)
	w.logger.Debug("inbox_indexed",
		slog.String("file", filepath.Base(path)),
		slog.String("url", payload.URL),
		slog.String("level", string(res.Level)))
}

func (w *Watcher) reject(path string, cause error) {
	w.rejected.Add(1)
	w.logger.Warn("inbox_rejected",
		append(apperrors.LogAttrs(cause), slog.String("file", path))...)
	if err := os.Rename(path, path+rejectedExt); err != nil {
		w.logger.Warn("inbox_reject_rename_failed", slog.String("file", path), slog.String("error", err.Error()))
	}
}

func decodeCapture(data []byte) (backend.PagePayload, error) {
	var p backend.PagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, apperrors.ValidationError("invalid capture file", err)
	}
	if strings.TrimSpace(p.URL) == "" {
		return p, apperrors.ValidationError("capture has no url", nil)
	}
	return p, nil
}

// permanent reports whether retrying err can never succeed.
func permanent(err error) bool {
	return apperrors.GetCategory(err) == apperrors.CategoryValidation
}

func isCapture(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, captureExt) && !strings.HasPrefix(base, ".")
}


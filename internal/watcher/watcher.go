// Package watcher triggers re-ingestion when files under the docs root
// change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch of changes is
// delivered.
const DefaultDebounce = 500 * time.Millisecond

// Filter decides whether a slash-separated path relative to the root is
// relevant. Directories for which it returns false are not watched.
type Filter func(rel string, isDir bool) bool

// Handler receives each debounced batch of changed relative paths.
type Handler func(ctx context.Context, changed []string)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Filter   Filter
}

// Watcher watches a directory tree with fsnotify. New directories are
// added as they appear.
type Watcher struct {
	root      string
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a watcher for root.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Filter == nil {
		opts.Filter = func(string, bool) bool { return true }
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{root: abs, opts: opts, fs: fw, debouncer: NewDebouncer(opts.Debounce)}
	if err := w.addTree(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers debounced changes to handle until ctx is done. Batches are
// handled one at a time; changes arriving meanwhile form the next batch.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range w.debouncer.Output() {
			if ctx.Err() != nil {
				return
			}
			handle(ctx, batch)
		}
	}()

	errs := w.fs.Errors
	for {
		select {
		case <-ctx.Done():
			w.debouncer.Stop()
			<-done
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				w.debouncer.Stop()
				<-done
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		if ev.Has(fsnotify.Create) && w.opts.Filter(rel, true) {
			if err := w.addTree(ev.Name); err != nil {
				slog.Warn("watch new directory failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
			// files created before the watch was added
			w.debouncer.Add(rel)
		}
		return
	}

	// removed paths cannot be stat'ed; let the filter judge by name
	if !w.opts.Filter(rel, false) {
		return
	}
	slog.Debug("file changed", slog.String("path", rel), slog.String("op", ev.Op.String()))
	w.debouncer.Add(rel)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, p)
		rel = filepath.ToSlash(rel)
		if rel != "." && !w.opts.Filter(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", rel, err)
		}
		return nil
	})
}

func (w *Watcher) close() {
	_ = w.fs.Close()
}

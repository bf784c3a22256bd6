package walker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Op is the kind of incremental work a filesystem change produces.
type Op string

const (
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
)

// WorkItem is one incremental change of a library. Dir marks the removal
// of a whole directory.
type WorkItem struct {
	LibraryID uuid.UUID
	Path      string
	Op        Op
	Dir       bool
}

// Sink receives debounced work items.
type Sink func(ctx context.Context, item WorkItem) error

// WatcherError reports a lost or failed subscription.
type WatcherError struct {
	Path string
	Err  error
}

func (e *WatcherError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Path, e.Err)
}

func (e *WatcherError) Unwrap() error {
	return e.Err
}

var errChannelClosed = errors.New("notification channel closed")

// WatchOptions configures a Watcher.
type WatchOptions struct {
	Options
	Debounce   time.Duration
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Watcher turns filesystem notifications under a library root into work
// items. Bursts of events for one path collapse into a single item once the
// path has been quiet for the debounce period.
type Watcher struct {
	libraryID uuid.UUID
	root      string
	opts      WatchOptions
	filter    *filter
	sink      Sink
	logger    interfaces.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	// dirs is only touched by the event loop
	dirs map[string]bool
}

// NewWatcher creates a watcher for one library root.
func NewWatcher(libraryID uuid.UUID, root string, opts WatchOptions, sink Sink, logger interfaces.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.MaxBackoff < opts.Backoff {
		opts.MaxBackoff = opts.Backoff
	}
	return &Watcher{
		libraryID: libraryID,
		root:      filepath.Clean(root),
		opts:      opts,
		filter:    newFilter(opts.Options),
		sink:      sink,
		logger: logger.Named("watcher").WithFields(
			interfaces.String("library_id", libraryID.String()),
			interfaces.String("root", root)),
		pending: make(map[string]*time.Timer),
		dirs:    make(map[string]bool),
	}
}

// Run watches until ctx is cancelled. A lost subscription is logged and
// re-established with exponential backoff.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopPending()

	backoff := w.opts.Backoff
	for {
		subscribed, err := w.watch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = w.opts.Backoff
		}

		w.logger.Warn("Watch subscription lost, resubscribing",
			interfaces.Error(err),
			interfaces.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > w.opts.MaxBackoff {
			backoff = w.opts.MaxBackoff
		}
	}
}

func (w *Watcher) watch(ctx context.Context) (bool, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return false, &WatcherError{Path: w.root, Err: err}
	}
	defer fsw.Close()

	w.dirs = make(map[string]bool)
	if err := w.addTree(ctx, fsw, w.root, false); err != nil {
		return false, err
	}
	w.logger.Info("Watching library", interfaces.Int("directories", len(w.dirs)))

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return true, &WatcherError{Path: w.root, Err: errChannelClosed}
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				err = errChannelClosed
			}
			return true, &WatcherError{Path: w.root, Err: err}
		}
	}
}

// addTree registers every directory under dir. When announce is set the
// media files already present are scheduled as upserts, since files moved
// in together with their directory produce no events of their own.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, dir string, announce bool) error {
	tree, err := Walk(ctx, dir, w.opts.Options)
	if err != nil {
		return &WatcherError{Path: dir, Err: err}
	}
	for _, e := range tree.Errors {
		w.logger.Warn("Skipping unreadable entry", interfaces.String("path", e.Path), interfaces.Error(e.Err))
	}
	for _, d := range tree.Dirs() {
		if err := fsw.Add(d.Path); err != nil {
			if d.Path == w.root {
				return &WatcherError{Path: d.Path, Err: err}
			}
			w.logger.Warn("Cannot watch directory", interfaces.String("path", d.Path), interfaces.Error(err))
			continue
		}
		w.dirs[d.Path] = true
	}
	if announce {
		for _, f := range tree.Files() {
			w.schedule(ctx, f.Path, false)
		}
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if w.filter.skip(filepath.Base(path)) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(ctx, fsw, path, true); err != nil {
				w.logger.Warn("Cannot watch new directory", interfaces.String("path", path), interfaces.Error(err))
			}
			return
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if w.dirs[path] {
			w.forgetDir(path)
			w.schedule(ctx, path, true)
			return
		}
	}

	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !w.filter.media(path) {
		return
	}
	w.schedule(ctx, path, false)
}

func (w *Watcher) forgetDir(dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

// schedule (re)arms the debounce timer of a path. The operation is decided
// when the timer fires, from what is on disk at that moment.
func (w *Watcher) schedule(ctx context.Context, path string, dir bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		item := WorkItem{LibraryID: w.libraryID, Path: path, Op: OpRemove, Dir: dir}
		if !dir {
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				item.Op = OpUpsert
			}
		}
		if err := w.sink(ctx, item); err != nil {
			w.logger.Warn("Work item rejected",
				interfaces.String("path", path),
				interfaces.String("op", string(item.Op)),
				interfaces.Error(err))
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Package watcher implements C6: a debounced fsnotify watcher over a
// workspace root, collapsing rapid-fire events per path (a delete
// arriving after a pending upsert for the same path cancels the
// upsert — the last event for a path wins) and expanding a rename into
// a delete of the old path, relying on the filesystem to also emit a
// create for the new one.
//
// Grounded on hector's v2/rag/watcher.go (fsnotify setup, recursive
// directory registration, debounce-timer-per-batch structure) and
// original_source's backend/app/indexing/file_watcher.py
// (debounce_seconds=0.5 default, bounded queue with drop-and-warn on
// overflow, move-as-delete-then-upsert semantics).
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDelay matches file_watcher.py's debounce_seconds.
const DefaultDebounceDelay = 500 * time.Millisecond

// DefaultQueueSize matches file_watcher.py's asyncio.Queue(maxsize=1000).
const DefaultQueueSize = 1000

var ignoredDirNames = map[string]bool{".git": true, "node_modules": true, "vendor": true, ".venv": true}

// EventType discriminates what happened to a path.
type EventType string

const (
	EventUpsert EventType = "upsert"
	EventDelete EventType = "delete"
)

// Event is one coalesced, debounced filesystem change, relative to the
// watched root.
type Event struct {
	RelPath string
	Type    EventType
}

// Filter decides whether a path should be surfaced at all. A nil
// Filter surfaces every non-directory path.
type Filter interface {
	ShouldProcess(relPath string) bool
}

// ExtensionFilter surfaces only paths whose extension is in Allowed.
type ExtensionFilter struct {
	Allowed map[string]bool
}

func (f ExtensionFilter) ShouldProcess(relPath string) bool {
	return f.Allowed[strings.ToLower(filepath.Ext(relPath))]
}

// Config configures a Watcher.
type Config struct {
	Root          string
	Filter        Filter
	DebounceDelay time.Duration
	QueueSize     int
}

// Watcher watches Root for changes and emits debounced, collapsed
// Events on the channel returned by Start.
type Watcher struct {
	fsw           *fsnotify.Watcher
	root          string
	filter        Filter
	debounceDelay time.Duration
	events        chan Event

	mu         sync.Mutex
	isWatching bool
	cancel     context.CancelFunc
}

// New constructs a Watcher. It does not start watching until Start is
// called.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	debounce := cfg.DebounceDelay
	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Watcher{
		fsw:           fsw,
		root:          cfg.Root,
		filter:        cfg.Filter,
		debounceDelay: debounce,
		events:        make(chan Event, queueSize),
	}, nil
}

// Start begins watching the root (and every subdirectory) for
// changes, returning the event channel. Calling Start twice is a
// no-op that returns the existing channel.
func (w *Watcher) Start(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return w.events, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.setupWatching(); err != nil {
		cancel()
		return nil, err
	}
	w.isWatching = true

	go w.run(runCtx)

	slog.Info("watcher: started", slog.String("root", w.root))
	return w.events, nil
}

// Stop stops watching and closes the event channel.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}
	w.cancel()
	w.isWatching = false

	err := w.fsw.Close()
	close(w.events)

	slog.Info("watcher: stopped", slog.String("root", w.root))
	return err
}

func (w *Watcher) setupWatching() error {
	if err := w.fsw.Add(w.root); err != nil {
		return fmt.Errorf("watcher: watch root %s: %w", w.root, err)
	}
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if ignoredDirNames[info.Name()] {
			return filepath.SkipDir
		}
		if path == w.root {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("watcher: failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// run is the event loop: it collects fsnotify events into a
// per-path-keyed pending map (so the last event for a path wins) and
// flushes the batch debounceDelay after the most recent event.
func (w *Watcher) run(ctx context.Context) {
	pending := make(map[string]Event)
	var mu sync.Mutex
	var timer *time.Timer

	flush := func() {
		mu.Lock()
		batch := pending
		pending = make(map[string]Event)
		mu.Unlock()

		for _, ev := range batch {
			select {
			case w.events <- ev:
			case <-ctx.Done():
				return
			default:
				slog.Warn("watcher: event queue full, dropping event", slog.String("path", ev.RelPath))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			flush()
			return

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if fsEvent.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if ev, ok := w.classify(fsEvent); ok {
				mu.Lock()
				pending[ev.RelPath] = ev
				mu.Unlock()
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceDelay, flush)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher: fsnotify error", slog.String("root", w.root), slog.String("error", err.Error()))
		}
	}
}

// classify turns one fsnotify event into an Event, or ok=false if it
// should be ignored (outside root, filtered out, or a directory
// create — which is registered for watching rather than surfaced).
func (w *Watcher) classify(fsEvent fsnotify.Event) (Event, bool) {
	path := fsEvent.Name
	relPath, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return Event{}, false
	}

	switch {
	case fsEvent.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				slog.Warn("watcher: failed to watch new directory", slog.String("path", path), slog.String("error", addErr.Error()))
			}
			return Event{}, false
		}
		if !w.allow(relPath) {
			return Event{}, false
		}
		return Event{RelPath: relPath, Type: EventUpsert}, true

	case fsEvent.Op&fsnotify.Write == fsnotify.Write:
		if !w.allow(relPath) {
			return Event{}, false
		}
		return Event{RelPath: relPath, Type: EventUpsert}, true

	case fsEvent.Op&fsnotify.Remove == fsnotify.Remove, fsEvent.Op&fsnotify.Rename == fsnotify.Rename:
		if !w.allow(relPath) {
			return Event{}, false
		}
		return Event{RelPath: relPath, Type: EventDelete}, true

	default:
		return Event{}, false
	}
}

func (w *Watcher) allow(relPath string) bool {
	if w.filter == nil {
		return true
	}
	return w.filter.ShouldProcess(relPath)
}

// IsWatching reports whether the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isWatching
}

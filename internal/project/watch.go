package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer bounds the watcher's output channel, matching the
// scale of DocWatcher.eventChannelBuffer.
const eventChannelBuffer = 500

// defaultDebounce coalesces a burst of filesystem events (e.g. a git
// checkout touching many files) into a single flush.
const defaultDebounce = 300 * time.Millisecond

// ChangeKind distinguishes the three ways a watched .elm file can change
// from outside the editor.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeModify
	ChangeDelete
)

// Change is one external filesystem change to feed into the analysis
// pipeline "identically to editor edits" (spec §6.3).
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher recursively watches an Elm project root for .elm changes made
// outside any editor, grounded on
// processor/source-ingester/watcher.go's DocWatcher: fsnotify recursive
// directory watches, a debounce ticker coalescing bursts, and
// content-hash suppression so a write the daemon's own gate just
// performed (materializeOverlay writes happen in a temp dir, never the
// real tree, but a refactor's own emitted edit does land on disk once the
// editor applies it) doesn't get re-processed as an external change.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]struct{}
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events chan Change

	droppedEvents atomic.Int64
}

// NewWatcher builds a Watcher rooted at root. Call Start to begin
// watching.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	return NewWatcherWithDebounce(root, logger, defaultDebounce)
}

// NewWatcherWithDebounce is NewWatcher with an explicit debounce interval,
// used by cmd/elm-pair with the configured interval and by tests that need
// a shorter coalescing window than the default 300ms.
func NewWatcherWithDebounce(root string, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:   root,
		fsw:    fsw,
		logger: logger,
		excludes: map[string]struct{}{
			".git":         {},
			"elm-stuff":    {},
			"node_modules": {},
		},
		debounce: debounce,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan Change, eventChannelBuffer),
	}, nil
}

// Events returns the channel of external changes.
func (w *Watcher) Events() <-chan Change {
	return w.events
}

// DroppedEvents returns the number of events dropped because the output
// channel was full, exposed for telemetry.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// Start adds recursive directory watches and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if _, excluded := w.excludes[base]; excluded || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("project: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("project: watcher error", "error", err)
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	if !strings.HasSuffix(path, ".elm") {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.watchNewDirectory(path)
			}
		}
		return
	}

	rel, _ := filepath.Rel(w.root, path)
	for exclude := range w.excludes {
		if strings.Contains(rel, exclude+string(filepath.Separator)) {
			return
		}
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) watchNewDirectory(path string) {
	base := filepath.Base(path)
	if _, excluded := w.excludes[base]; excluded || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("project: failed to watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			w.hashMu.Lock()
			delete(w.hashes, path)
			w.hashMu.Unlock()
			w.sendEvent(Change{Path: path, Kind: ChangeDelete})
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				w.sendEvent(Change{Path: path, Kind: ChangeDelete})
			}
			continue
		}

		newHash := contentHash(content)
		w.hashMu.RLock()
		oldHash, hadHash := w.hashes[path]
		w.hashMu.RUnlock()
		if hadHash && oldHash == newHash {
			// The content is identical to what we last saw; this write is
			// a refactor the editor already applied echoing back, or a
			// no-op save. Suppress it.
			continue
		}

		w.hashMu.Lock()
		w.hashes[path] = newHash
		w.hashMu.Unlock()

		kind := ChangeModify
		if op.Has(fsnotify.Create) || !hadHash {
			kind = ChangeCreate
		}
		w.sendEvent(Change{Path: path, Kind: kind})
	}
}

func (w *Watcher) sendEvent(c Change) {
	select {
	case w.events <- c:
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("project: watch event channel full, dropping event", "path", c.Path, "total_dropped", dropped)
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/amirbrooks/medtodo/internal/task"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reports edits made to tasks.yaml by other processes. Writes made
// through the same Workspace are recognized by content hash and skipped.
type Watcher struct {
	ws       *Workspace
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *log.Entry
	onChange func([]task.Task)

	mu      sync.Mutex
	dirty   bool
	started bool
	done    chan struct{}
}

// NewWatcher creates a watcher for ws. onChange receives the reloaded
// collection on the watcher goroutine.
func NewWatcher(ws *Workspace, debounce time.Duration, logger *log.Entry, onChange func([]task.Task)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Watcher{
		ws:       ws,
		fsw:      fsw,
		debounce: debounce,
		logger:   logger.WithField("path", ws.TasksPath()),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the store root until ctx is cancelled or Stop is called.
// The directory is watched rather than the file so atomic renames are seen.
// On failure the underlying watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.ws.Root, dirPerm); err != nil {
		_ = w.fsw.Close()
		return err
	}
	if err := w.fsw.Add(w.ws.Root); err != nil {
		_ = w.fsw.Close()
		return err
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.loop(ctx)
	w.logger.WithField("debounce", w.debounce).Debug("watching tasks file")
	return nil
}

// Stop closes the underlying watcher and waits for the loop to exit, if
// one was started. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	err := w.fsw.Close()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
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
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watch error")
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Base(event.Name) != tasksFile {
		return
	}
	// A removed file is not treated as an empty collection; the next write
	// recreates it.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	dirty := w.dirty
	w.dirty = false
	w.mu.Unlock()
	if !dirty {
		return
	}

	b, err := os.ReadFile(w.ws.TasksPath())
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.WithError(err).Warn("reload failed")
		return
	}
	if w.ws.ownWrite(b) {
		return
	}
	tasks, err := decodeDocument(b)
	if err != nil {
		// Likely a partial write by an editor; the next event retries.
		w.logger.WithError(err).Warn("ignoring unreadable tasks file")
		return
	}
	w.ws.mu.Lock()
	w.ws.lastHash = contentHash(b)
	w.ws.mu.Unlock()

	w.logger.WithField("tasks", len(tasks)).Info("tasks file changed externally")
	if w.onChange != nil {
		w.onChange(tasks)
	}
}

// Package watch reports changes to a single file on disk.
//
// The talkgroup directory is loaded once at startup; this package only tells
// the operator that the file moved underneath a running process.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/rdio-stats/internal/logger"
)

// DefaultDebounce coalesces bursts of writes from editors and copy tools.
const DefaultDebounce = 100 * time.Millisecond

// EventType defines the type of watch event.
type EventType int

const (
	EventChanged EventType = iota
	EventRemoved
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event describes a change to the watched file.
type Event struct {
	Type  EventType
	Path  string
	Error error
}

// Watcher watches one file through its parent directory, so that atomic
// renames and recreations are seen too.
type Watcher struct {
	mu            sync.Mutex
	path          string
	debounce      time.Duration
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	stopOnce      sync.Once
	debounceTimer *time.Timer
	pending       EventType
}

// New starts watching path. A debounce of zero uses DefaultDebounce.
func New(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:      abs,
		debounce:  debounce,
		watcher:   fw,
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
	go w.watchLoop()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Events returns the channel of debounced events.
func (w *Watcher) Events() <-chan Event {
	return w.eventChan
}

func (w *Watcher) watchLoop() {
	name := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.schedule(EventChanged)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.schedule(EventRemoved)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(Event{Type: EventError, Path: w.path, Error: err})

		case <-w.stopChan:
			return
		}
	}
}

// schedule restarts the debounce timer. The last event type of a burst wins.
func (w *Watcher) schedule(t EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = t
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		pending := w.pending
		w.mu.Unlock()
		w.send(Event{Type: pending, Path: w.path})
	})
}

// send delivers an event without blocking, dropping the oldest when full.
func (w *Watcher) send(event Event) {
	select {
	case <-w.stopChan:
		return
	default:
	}

	select {
	case w.eventChan <- event:
	default:
		select {
		case <-w.eventChan:
		default:
		}
		select {
		case w.eventChan <- event:
		default:
		}
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

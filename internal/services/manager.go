// Package services wires the stats store, the talkgroup directory and the
// side services (notifications, file watching) together.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/j-veylop/rdio-stats/internal/config"
	"github.com/j-veylop/rdio-stats/internal/db"
	"github.com/j-veylop/rdio-stats/internal/logger"
	"github.com/j-veylop/rdio-stats/internal/metrics"
	"github.com/j-veylop/rdio-stats/internal/models"
	"github.com/j-veylop/rdio-stats/internal/services/notify"
	"github.com/j-veylop/rdio-stats/internal/services/watch"
	"github.com/j-veylop/rdio-stats/internal/stats"
	"github.com/j-veylop/rdio-stats/internal/talkgroups"
)

const appName = "rdio-stats"

type (
	// CallIngestedEvent is emitted after a call has been counted.
	CallIngestedEvent struct {
		Result *stats.Result
	}

	// TalkgroupsChangedEvent is emitted when the talkgroup file changes on
	// disk. The loaded directory is not refreshed.
	TalkgroupsChangedEvent struct {
		Path    string
		Removed bool
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (CallIngestedEvent) isServiceEvent()      {}
func (TalkgroupsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()             {}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier replaces the notifier chosen from configuration.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	database    *db.DB
	directory   *talkgroups.Directory
	stats       *stats.Service
	notifier    notify.Notifier
	watcher     *watch.Watcher
	eventChan   chan ServiceEvent
	notifyChan  chan models.Talkgroup
	stopChan    chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	subscribers []chan ServiceEvent
}

// NewManager loads the talkgroup directory, opens the database and starts
// the side services. A directory that cannot be loaded is fatal.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		eventChan:  make(chan ServiceEvent, 100),
		notifyChan: make(chan models.Talkgroup, 100),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	var err error
	m.directory, err = loadDirectory(cfg.Data.TalkgroupsCSV)
	if err != nil {
		return nil, err
	}
	metrics.SetTalkgroupsLoaded(m.directory.Len())

	m.database, err = db.New(cfg.Data.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.stats = stats.New(m.database, m.database, m.directory)

	if cfg.Notify.Enabled {
		m.notifier = notify.NewDesktop(appName)
	} else {
		m.notifier = notify.Noop{}
	}

	for _, opt := range opts {
		opt(m)
	}

	if cfg.Data.TalkgroupsCSV != "" {
		m.watcher, err = watch.New(cfg.Data.TalkgroupsCSV, watch.DefaultDebounce)
		if err != nil {
			logger.Warn("talkgroup file will not be watched", "path", cfg.Data.TalkgroupsCSV, "error", err)
		}
	}

	go m.routeEvents()

	return m, nil
}

func loadDirectory(path string) (*talkgroups.Directory, error) {
	if path == "" {
		logger.Warn("no talkgroup file configured, every call resolves as unknown")
		return talkgroups.New(nil), nil
	}

	dir, err := talkgroups.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load talkgroups: %w", err)
	}

	logger.Info("talkgroups loaded", "path", path, "count", dir.Len())
	return dir, nil
}

// routeEvents turns watcher events into service events and delivers
// notifications off the request path.
func (m *Manager) routeEvents() {
	defer close(m.done)

	var watchEvents <-chan watch.Event
	if m.watcher != nil {
		watchEvents = m.watcher.Events()
	}

	for {
		select {
		case event := <-watchEvents:
			m.handleWatchEvent(event)

		case tg := <-m.notifyChan:
			m.sendNotification(tg)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleWatchEvent(event watch.Event) {
	switch event.Type {
	case watch.EventChanged, watch.EventRemoved:
		logger.Warn("talkgroup file changed on disk, restart to load it",
			"path", event.Path,
			"change", event.Type.String(),
		)
		m.broadcast(TalkgroupsChangedEvent{
			Path:    event.Path,
			Removed: event.Type == watch.EventRemoved,
		})

	case watch.EventError:
		logger.Error("talkgroup watcher failed", "error", event.Error)
		m.broadcast(ErrorEvent{Service: "watch", Error: event.Error})
	}
}

func (m *Manager) sendNotification(tg models.Talkgroup) {
	title, body := notify.Message(tg)
	if err := m.notifier.Notify(title, body); err != nil {
		logger.Debug("notification failed", "talkgroup", tg.ID, "error", err)
		m.broadcast(ErrorEvent{Service: "notify", Error: err})
	}
}

// Ingest counts one call and announces it to subscribers.
func (m *Manager) Ingest(ctx context.Context, talkgroupID string) (*stats.Result, error) {
	res, err := m.stats.Ingest(ctx, talkgroupID)
	if err != nil {
		if !errors.Is(err, stats.ErrIncomplete) {
			m.broadcast(ErrorEvent{Service: "stats", Error: err})
		}
		return nil, err
	}

	select {
	case m.notifyChan <- res.Talkgroup:
	default:
		logger.Debug("notification queue full, dropping", "talkgroup", res.Key)
	}

	m.broadcast(CallIngestedEvent{Result: res})
	return res, nil
}

// Summary returns the current snapshot.
func (m *Manager) Summary(ctx context.Context) (*models.Summary, error) {
	return m.stats.Summary(ctx)
}

// Ping checks the database.
func (m *Manager) Ping(ctx context.Context) error {
	return m.stats.Ping(ctx)
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	select {
	case m.eventChan <- event:
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Events returns the manager's own event channel. Events are dropped when
// nobody drains it.
func (m *Manager) Events() <-chan ServiceEvent {
	return m.eventChan
}

// Subscribe creates a channel for receiving service events.
func (m *Manager) Subscribe() chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Directory returns the loaded talkgroup directory.
func (m *Manager) Directory() *talkgroups.Directory {
	return m.directory
}

// Stats returns the stats service.
func (m *Manager) Stats() *stats.Service {
	return m.stats
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close stops the side services and closes the database. It is safe to call
// more than once.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		close(m.stopChan)
		<-m.done

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.watcher != nil {
			if err := m.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}

// Package stats ingests call events into the counter store and the call
// ledger and assembles dashboard snapshots from them.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/rdio-stats/internal/buckets"
	"github.com/j-veylop/rdio-stats/internal/models"
)

var (
	// ErrIncomplete is returned by Ingest when the event carries no talkgroup.
	// It is not a failure: clients probe connectivity with empty uploads.
	ErrIncomplete = errors.New("incomplete call data: no talkgroup")

	// ErrStore wraps every counter store or ledger failure.
	ErrStore = errors.New("stats store failure")
)

// CounterStore is a durable map of bucket key to count.
type CounterStore interface {
	// Increment adds one to key, creating it when absent, as one atomic step.
	Increment(ctx context.Context, key string) error
	// ReadAll returns every counter in no particular order.
	ReadAll(ctx context.Context) ([]models.CounterEntry, error)
}

// Ledger is the append-only record of ingested calls.
type Ledger interface {
	Append(ctx context.Context, rec *models.CallRecord) error
	// MostRecent returns nil when the ledger is empty.
	MostRecent(ctx context.Context) (*models.CallRecord, error)
}

// Resolver maps talkgroup ids onto directory records. It never fails.
type Resolver interface {
	Lookup(id string) models.Talkgroup
}

// pinger is implemented by stores that can report their health.
type pinger interface {
	Ping(ctx context.Context) error
}

// Result describes one successfully ingested call.
type Result struct {
	Talkgroup models.Talkgroup
	Key       string
	Time      time.Time
	Record    models.CallRecord
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service ties the directory, the counter store and the ledger together.
type Service struct {
	counters  CounterStore
	ledger    Ledger
	directory Resolver
	now       func() time.Time
}

// New creates a stats service.
func New(counters CounterStore, ledger Ledger, directory Resolver, opts ...Option) *Service {
	s := &Service{
		counters:  counters,
		ledger:    ledger,
		directory: directory,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest records one call on talkgroupID. Every counter write and the ledger
// append have completed when it returns nil.
func (s *Service) Ingest(ctx context.Context, talkgroupID string) (*Result, error) {
	talkgroupID = strings.TrimSpace(talkgroupID)
	if talkgroupID == "" {
		return nil, ErrIncomplete
	}

	tg := s.lookup(talkgroupID)
	now := s.now()

	for _, key := range buckets.ForCall(tg, now) {
		if err := s.counters.Increment(ctx, key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
	}

	rec := models.CallRecord{
		TalkgroupKey:    buckets.TalkgroupKey(tg.DisplayName, tg.ID),
		TimestampMillis: now.UnixMilli(),
	}
	if err := s.ledger.Append(ctx, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &Result{
		Talkgroup: tg,
		Key:       rec.TalkgroupKey,
		Time:      now,
		Record:    rec,
	}, nil
}

func (s *Service) lookup(id string) models.Talkgroup {
	if s.directory == nil {
		return models.FallbackTalkgroup(id)
	}
	return s.directory.Lookup(id)
}

// Summary returns the snapshot for the current instant.
func (s *Service) Summary(ctx context.Context) (*models.Summary, error) {
	return s.Snapshot(ctx, s.now())
}

// Snapshot rebuilds the dashboard view as of now from the persisted counters
// and the ledger tail. It has no side effects.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (*models.Summary, error) {
	entries, err := s.counters.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	summary := accumulate(entries, now)

	last, err := s.ledger.MostRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if last != nil {
		displayName, id := buckets.SplitTalkgroupKey(last.TalkgroupKey)
		summary.LastCall = &models.LastCall{
			DisplayName:     displayName,
			ID:              id,
			TimestampMillis: last.TimestampMillis,
		}
	}

	return summary, nil
}

// accumulate classifies counters by namespace into a summary.
func accumulate(entries []models.CounterEntry, now time.Time) *models.Summary {
	today := buckets.DayValue(now)
	week := buckets.WeekValue(now)
	year := buckets.YearValue(now)

	summary := &models.Summary{
		Talkgroups: make(map[string]int64),
		Tags:       make(map[string]int64),
	}

	for _, e := range entries {
		namespace, value, ok := buckets.Parse(e.Key)
		if !ok {
			continue
		}

		switch namespace {
		case buckets.All:
			summary.Total = e.Count
		case buckets.Talkgroup:
			summary.Talkgroups[value] = e.Count
		case buckets.Tag:
			summary.Tags[value] = e.Count
		case buckets.Hour:
			if hour, ok := parseHour(value); ok {
				summary.Hours[hour] = e.Count
			}
		case buckets.Day:
			if value == today {
				summary.Today = e.Count
			}
		case buckets.Week:
			if value == week {
				summary.Week = e.Count
			}
		case buckets.Year:
			if value == year {
				summary.Year = e.Count
			}
		}
	}

	summary.UniqueTalkgroups = len(summary.Talkgroups)
	return summary
}

func parseHour(value string) (int, bool) {
	hour, err := strconv.Atoi(value)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// Ping checks every store that can report its health.
func (s *Service) Ping(ctx context.Context) error {
	for _, store := range []any{s.counters, s.ledger} {
		if p, ok := store.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("%w: %w", ErrStore, err)
			}
		}
	}
	return nil
}

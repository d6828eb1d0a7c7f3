package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/rdio-stats/internal/logger"
	"github.com/j-veylop/rdio-stats/internal/metrics"
	"github.com/j-veylop/rdio-stats/internal/models"
)

// Increment adds one to the counter stored under key, creating it at 1.
// The upsert is a single statement, so concurrent increments never lose updates.
func (db *DB) Increment(ctx context.Context, key string) (err error) {
	defer observe("increment", time.Now(), &err)

	query := `
		INSERT INTO counters (key, count) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET count = counters.count + 1
	`

	if _, err := db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to increment counter %q: %w", key, err)
	}
	return nil
}

// ReadAll returns every counter. Order is unspecified.
func (db *DB) ReadAll(ctx context.Context) (_ []models.CounterEntry, err error) {
	defer observe("read_all", time.Now(), &err)

	rows, err := db.QueryContext(ctx, "SELECT key, count FROM counters")
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var entries []models.CounterEntry
	for rows.Next() {
		var e models.CounterEntry
		if err := rows.Scan(&e.Key, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Append records one call in the ledger and sets rec.ID.
func (db *DB) Append(ctx context.Context, rec *models.CallRecord) (err error) {
	defer observe("append", time.Now(), &err)

	result, err := db.ExecContext(ctx,
		"INSERT INTO calls (talkgroup, timestamp) VALUES (?, ?)",
		rec.TalkgroupKey,
		rec.TimestampMillis,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		rec.ID = id
	}

	return nil
}

// MostRecent returns the call with the greatest timestamp, the later insert
// winning ties. It returns nil when the ledger is empty.
func (db *DB) MostRecent(ctx context.Context) (_ *models.CallRecord, err error) {
	defer observe("most_recent", time.Now(), &err)

	query := `
		SELECT id, talkgroup, timestamp
		FROM calls
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	var rec models.CallRecord
	err = db.QueryRowContext(ctx, query).Scan(&rec.ID, &rec.TalkgroupKey, &rec.TimestampMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last call: %w", err)
	}

	return &rec, nil
}

// CountCalls returns the number of ledger rows.
func (db *DB) CountCalls(ctx context.Context) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count calls: %w", err)
	}
	return n, nil
}

// observe reports the outcome of a store operation once it returns.
func observe(operation string, start time.Time, err *error) {
	metrics.RecordStoreOp(operation, time.Since(start), *err)
}

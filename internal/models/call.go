// Package models defines data structures and domain types.
package models

// CounterEntry is one aggregate counter keyed by its bucket key.
type CounterEntry struct {
	Key   string
	Count int64
}

// CallRecord is one row of the append-only call ledger.
type CallRecord struct {
	ID              int64
	TalkgroupKey    string
	TimestampMillis int64
}

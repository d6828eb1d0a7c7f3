package stats

import (
	"context"
	"testing"

	"github.com/j-veylop/rdio-stats/internal/models"
)

func TestMemoryStore_MostRecent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if rec, _ := m.MostRecent(ctx); rec != nil {
		t.Fatalf("MostRecent() on empty store = %+v", rec)
	}

	records := []models.CallRecord{
		{TalkgroupKey: "A|1", TimestampMillis: 100},
		{TalkgroupKey: "B|2", TimestampMillis: 300},
		{TalkgroupKey: "C|3", TimestampMillis: 200},
		{TalkgroupKey: "D|4", TimestampMillis: 300},
	}
	for i := range records {
		if err := m.Append(ctx, &records[i]); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
		if records[i].ID != int64(i+1) {
			t.Errorf("Append() ID = %d, want %d", records[i].ID, i+1)
		}
	}

	rec, err := m.MostRecent(ctx)
	if err != nil {
		t.Fatalf("MostRecent() failed: %v", err)
	}
	if rec.TalkgroupKey != "D|4" {
		t.Errorf("MostRecent() = %q, want D|4 (latest timestamp, later append)", rec.TalkgroupKey)
	}
}

func TestMemoryStore_ReadAllIsACopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Increment(ctx, "ALL")

	entries, _ := m.ReadAll(ctx)
	entries[0].Count = 99

	if m.Count("ALL") != 1 {
		t.Error("ReadAll() must not expose internal state")
	}
}

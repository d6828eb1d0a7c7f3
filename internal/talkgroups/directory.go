// Package talkgroups loads the static talkgroup directory.
package talkgroups

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/j-veylop/rdio-stats/internal/logger"
	"github.com/j-veylop/rdio-stats/internal/models"
)

// Column positions of a directory record.
const (
	colID          = 0
	colDisplayName = 2
	colDescription = 4
	colCategory    = 5
	minFields      = 6
)

// headerToken is the first field of the header row exported by RadioReference.
const headerToken = "Decimal"

// ErrNoSource is returned when the directory file does not exist.
var ErrNoSource = errors.New("talkgroup file not found")

// Directory is an immutable id → talkgroup table. It is safe for concurrent reads.
type Directory struct {
	byID map[string]models.Talkgroup
}

// New builds a directory from already parsed records.
func New(records []models.Talkgroup) *Directory {
	d := &Directory{byID: make(map[string]models.Talkgroup, len(records))}
	for _, tg := range records {
		d.byID[tg.ID] = tg
	}
	return d
}

// LoadFile reads the directory from a CSV file.
func LoadFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSource, path)
		}
		return nil, fmt.Errorf("failed to open talkgroup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load talkgroup file %s: %w", path, err)
	}
	return d, nil
}

// Load parses comma-separated talkgroup records. Fields may be quoted and
// contain commas. Records with fewer than six fields and malformed lines are
// skipped.
func Load(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var records []models.Talkgroup
	skipped := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, err
		}

		tg, ok := parseRecord(fields)
		if !ok {
			skipped++
			continue
		}
		records = append(records, tg)
	}

	if skipped > 0 {
		logger.Debug("skipped talkgroup records", "count", skipped)
	}

	return New(records), nil
}

// parseRecord maps one CSV record onto a talkgroup.
func parseRecord(fields []string) (models.Talkgroup, bool) {
	if len(fields) < minFields {
		return models.Talkgroup{}, false
	}

	id := clean(fields[colID])
	if id == "" || id == headerToken {
		return models.Talkgroup{}, false
	}

	return models.Talkgroup{
		ID:          id,
		DisplayName: clean(fields[colDisplayName]),
		Description: clean(fields[colDescription]),
		Category:    clean(fields[colCategory]),
	}, true
}

// clean strips whitespace and any quote characters LazyQuotes left around a field.
func clean(field string) string {
	return strings.Trim(strings.TrimSpace(field), `"`)
}

// Lookup returns the talkgroup for id, or a fallback record when id is unknown.
func (d *Directory) Lookup(id string) models.Talkgroup {
	if d != nil {
		if tg, ok := d.byID[id]; ok {
			return tg
		}
	}
	return models.FallbackTalkgroup(id)
}

// Len returns the number of loaded talkgroups.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

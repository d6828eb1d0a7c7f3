// Package buckets builds and parses the namespaced keys of the counter store.
//
// Every counter is stored under "<namespace>:<value>", except the global
// total which is stored under "ALL". All time-derived values use the location
// of the time passed in; callers pass local time, so buckets follow the
// process timezone (set TZ to change it).
package buckets

import (
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/rdio-stats/internal/models"
)

// Namespaces of the counter store.
const (
	All       = "ALL"
	Talkgroup = "TG"
	Day       = "DAY"
	Hour      = "HOUR"
	Week      = "WEEK"
	Year      = "YEAR"
	Tag       = "TAG"
)

const (
	namespaceSeparator = ":"
	talkgroupSeparator = "|"
	dayLayout          = "2006-01-02"
)

// Key joins a namespace and a value into a bucket key.
func Key(namespace, value string) string {
	return namespace + namespaceSeparator + value
}

// Parse splits a bucket key into namespace and value.
// The global key parses as (All, "").
func Parse(key string) (namespace, value string, ok bool) {
	if key == All {
		return All, "", true
	}
	namespace, value, ok = strings.Cut(key, namespaceSeparator)
	if !ok || namespace == "" {
		return "", "", false
	}
	return namespace, value, true
}

// TalkgroupKey builds the composite "displayName|id" key.
func TalkgroupKey(displayName, id string) string {
	return displayName + talkgroupSeparator + id
}

// SplitTalkgroupKey reverses TalkgroupKey. The first segment is the display
// name and the remainder is the id, so display names must not contain "|".
func SplitTalkgroupKey(key string) (displayName, id string) {
	displayName, id, _ = strings.Cut(key, talkgroupSeparator)
	return displayName, id
}

// DayValue formats t as an ISO date.
func DayValue(t time.Time) string {
	return t.Format(dayLayout)
}

// HourValue formats the hour of day of t (0-23, unpadded).
func HourValue(t time.Time) string {
	return strconv.Itoa(t.Hour())
}

// YearValue formats the 4-digit year of t.
func YearValue(t time.Time) string {
	return strconv.Itoa(t.Year())
}

// WeekStart returns midnight of the Monday of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d-(weekday-1), 0, 0, 0, 0, t.Location())
}

// WeekValue formats the week start of t as epoch milliseconds.
func WeekValue(t time.Time) string {
	return strconv.FormatInt(WeekStart(t).UnixMilli(), 10)
}

// ForCall returns every key a call on tg at instant now increments.
func ForCall(tg models.Talkgroup, now time.Time) []string {
	return []string{
		All,
		Key(Talkgroup, TalkgroupKey(tg.DisplayName, tg.ID)),
		Key(Day, DayValue(now)),
		Key(Hour, HourValue(now)),
		Key(Week, WeekValue(now)),
		Key(Year, YearValue(now)),
		Key(Tag, tg.Category),
	}
}

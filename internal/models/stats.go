// Package models defines data structures and domain types.
package models

// Summary is the point-in-time aggregate view served to the dashboard.
type Summary struct {
	Total            int64            `json:"total"`
	Today            int64            `json:"today"`
	Week             int64            `json:"week"`
	Year             int64            `json:"year"`
	UniqueTalkgroups int              `json:"uniqueTalkgroups"`
	Talkgroups       map[string]int64 `json:"talkgroups"`
	Tags             map[string]int64 `json:"tags"`
	Hours            [24]int64        `json:"hours"`
	LastCall         *LastCall        `json:"lastCall"`
}

// LastCall is the decomposed most recent ledger entry.
type LastCall struct {
	DisplayName     string `json:"alpha"`
	ID              string `json:"decimal"`
	TimestampMillis int64  `json:"time"`
}

// HourCount is the number of calls seen during one hour of the day.
type HourCount struct {
	Hour  int   `json:"hour"`
	Calls int64 `json:"calls"`
}

// TalkgroupCount is a talkgroup with its all-time call count.
type TalkgroupCount struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	ID          string `json:"id"`
	Calls       int64  `json:"calls"`
}

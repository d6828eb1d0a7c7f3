// Package models defines data structures and domain types.
package models

// UnknownCategory is assigned to talkgroups missing from the directory.
const UnknownCategory = "Unknown"

// Talkgroup is a single entry of the talkgroup directory.
type Talkgroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
}

// FallbackTalkgroup synthesizes the record used for ids the directory does not know.
func FallbackTalkgroup(id string) Talkgroup {
	return Talkgroup{
		ID:          id,
		DisplayName: id,
		Category:    UnknownCategory,
	}
}

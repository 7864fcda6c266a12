package model

import "time"

// EditType describes what a collaborative edit does to a reference.
type EditType string

const (
	EditModify EditType = "modify"
	EditDelete EditType = "delete"
	EditAdd    EditType = "add"
)

// ReferenceEdit is an atomic change to one field of one reference by one
// editor. Accepted edits are appended to the session history and never
// mutated afterwards.
type ReferenceEdit struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	ReferenceID string    `json:"reference_id"`
	EditorID    string    `json:"editor_id"`
	Type        EditType  `json:"type"`
	Field       string    `json:"field"`
	OldValue    any       `json:"old_value,omitempty"`
	NewValue    any       `json:"new_value,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ResolutionStrategy selects how a concurrent-edit conflict is settled.
type ResolutionStrategy string

const (
	ResolveLatestWins ResolutionStrategy = "latest_wins"
	ResolveSetUnion   ResolutionStrategy = "set_union"
	ResolveManual     ResolutionStrategy = "manual"
)

// ConflictResolution records how a set of competing edits to the same
// (reference, field) was settled.
type ConflictResolution struct {
	ReferenceID string             `json:"reference_id"`
	Field       string             `json:"field"`
	Edits       []ReferenceEdit    `json:"edits"`
	Strategy    ResolutionStrategy `json:"strategy"`
	Winner      *ReferenceEdit     `json:"winner,omitempty"`
	MergedValue any                `json:"merged_value,omitempty"`
	ResolvedAt  time.Time          `json:"resolved_at"`

	// RequiresManualResolution is true when no automatic strategy applies;
	// the conflicting edit is rejected and surfaced to the caller.
	RequiresManualResolution bool `json:"requires_manual_resolution"`
}

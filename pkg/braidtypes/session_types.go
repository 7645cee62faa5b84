// Package braidtypes defines session persistence types for braid.
package braidtypes

import "time"

// WaypointRecord is the persisted form of a user-placed checkpoint.
type WaypointRecord struct {
	MessageIndex int       `json:"index"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionRecord is the opaque session document saved and loaded by the
// store: full message log, the current summary block, waypoints, the
// last known token count, and the models used during the session.
type SessionRecord struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Messages       []Message        `json:"messages"`
	SummarizedUpTo int              `json:"summarized_up_to"`
	SummaryXML     string           `json:"summary_xml,omitempty"`
	Waypoints      []WaypointRecord `json:"waypoints,omitempty"`
	TokenCount     int              `json:"token_count"`
	ModelsUsed     []string         `json:"models_used,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

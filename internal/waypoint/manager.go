// Package waypoint manages user-placed conversation checkpoints.
// Waypoints mark preferred summarization boundaries. They never decide
// whether to summarize; the controller queries the boundary and hands
// it to the summary generator.
package waypoint

import (
	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

// Manager stores waypoint indices into the conversation history.
// Not safe for concurrent use; the controller serializes access.
type Manager struct {
	waypoints []braidtypes.WaypointRecord
	testMode  bool
}

// NewManager creates an empty waypoint manager. testMode selects
// deterministic timestamps for waypoint records.
func NewManager(testMode bool) *Manager {
	return &Manager{testMode: testMode}
}

// Add places a waypoint at the given message index. Adding at an index
// that already has one is a no-op returning the existing record.
func (m *Manager) Add(messageIndex int) braidtypes.WaypointRecord {
	for _, wp := range m.waypoints {
		if wp.MessageIndex == messageIndex {
			return wp
		}
	}
	wp := braidtypes.WaypointRecord{
		MessageIndex: messageIndex,
		CreatedAt:    testutils.Now(m.testMode),
	}
	m.waypoints = append(m.waypoints, wp)
	return wp
}

// Remove deletes the waypoint at the given index and reports whether
// one existed.
func (m *Manager) Remove(messageIndex int) bool {
	for i, wp := range m.waypoints {
		if wp.MessageIndex == messageIndex {
			m.waypoints = append(m.waypoints[:i], m.waypoints[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether a waypoint exists at the given index.
func (m *Manager) Has(messageIndex int) bool {
	for _, wp := range m.waypoints {
		if wp.MessageIndex == messageIndex {
			return true
		}
	}
	return false
}

// Count returns the number of waypoints.
func (m *Manager) Count() int {
	return len(m.waypoints)
}

// Records returns a copy of all waypoints, suitable for session
// persistence and archive export.
func (m *Manager) Records() []braidtypes.WaypointRecord {
	out := make([]braidtypes.WaypointRecord, len(m.waypoints))
	copy(out, m.waypoints)
	return out
}

// Restore replaces all waypoints, used when loading a saved session.
func (m *Manager) Restore(records []braidtypes.WaypointRecord) {
	m.waypoints = make([]braidtypes.WaypointRecord, len(records))
	copy(m.waypoints, records)
}

// Boundary returns the highest waypoint index that leaves at least
// minKeep messages unsummarized, and whether any waypoint qualifies.
func (m *Manager) Boundary(totalMessages, minKeep int) (int, bool) {
	maxBoundary := totalMessages - minKeep
	best := -1
	for _, wp := range m.waypoints {
		if wp.MessageIndex <= maxBoundary && wp.MessageIndex > best {
			best = wp.MessageIndex
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// ClearThrough removes all waypoints at or below the summarized
// boundary and returns how many were removed.
func (m *Manager) ClearThrough(boundary int) int {
	kept := m.waypoints[:0]
	for _, wp := range m.waypoints {
		if wp.MessageIndex > boundary {
			kept = append(kept, wp)
		}
	}
	removed := len(m.waypoints) - len(kept)
	m.waypoints = kept
	return removed
}

// ShiftDown lowers every waypoint index by removedCount after messages
// are removed from the front of the history, clamping at zero.
func (m *Manager) ShiftDown(removedCount int) {
	for i := range m.waypoints {
		m.waypoints[i].MessageIndex -= removedCount
		if m.waypoints[i].MessageIndex < 0 {
			m.waypoints[i].MessageIndex = 0
		}
	}
}

// Clear removes all waypoints.
func (m *Manager) Clear() {
	m.waypoints = nil
}

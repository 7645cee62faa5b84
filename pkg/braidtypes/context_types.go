// Package braidtypes defines context budget types for braid.
package braidtypes

// ContextState is the current pressure level of the context budget.
// The state is a pure function of the used percentage against the
// warning and critical thresholds; it is recomputed on every update
// and carries no hysteresis.
type ContextState string

const (
	// ContextNormal means usage is below the warning threshold.
	ContextNormal ContextState = "normal"
	// ContextWarning means usage is between the warning and critical thresholds.
	ContextWarning ContextState = "warning"
	// ContextCritical means usage is at or above the critical threshold.
	ContextCritical ContextState = "critical"
)

// ContextStatus is a read-only snapshot of the budget manager, derived
// on request and safe to hand to display layers.
type ContextStatus struct {
	CurrentTokens   int          `json:"current_tokens"`
	ContextWindow   int          `json:"context_window"`
	Percentage      float64      `json:"percentage"`
	State           ContextState `json:"state"`
	SummarizedCount int          `json:"summarized_count"`
	ActiveCount     int          `json:"active_count"`
}

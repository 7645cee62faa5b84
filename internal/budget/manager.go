// Package budget tracks token usage against the active model's context
// window and decides when summarization should fire. It never generates
// summaries, calls a provider, or mutates history; it only signals.
package budget

import (
	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

const (
	minThreshold = 0.1
	maxThreshold = 1.0

	// Summarization needs something to fold in and something left over.
	minActiveMessages = 4
)

// Manager holds the context budget state. State is a pure function of
// the current percentage; there is no hysteresis. Not safe for
// concurrent use; the controller serializes access.
type Manager struct {
	contextWindow     int
	criticalThreshold float64
	warningThreshold  float64

	currentTokens   int
	totalMessages   int
	summarizedCount int
	driftPending    bool

	onSummarize []func()

	lastState braidtypes.ContextState
}

// NewManager creates a budget manager for the given context window.
// Thresholds outside (0, 1] are clamped.
func NewManager(contextWindow int, warningThreshold, criticalThreshold float64) *Manager {
	return &Manager{
		contextWindow:     contextWindow,
		warningThreshold:  clampThreshold(warningThreshold),
		criticalThreshold: clampThreshold(criticalThreshold),
		lastState:         braidtypes.ContextNormal,
	}
}

func clampThreshold(v float64) float64 {
	if v < minThreshold {
		return minThreshold
	}
	if v > maxThreshold {
		return maxThreshold
	}
	return v
}

// ContextWindow returns the current window size.
func (m *Manager) ContextWindow() int {
	return m.contextWindow
}

// SetContextWindow changes the window size, used when switching models.
func (m *Manager) SetContextWindow(size int) {
	m.contextWindow = size
}

// CurrentTokens returns the last reported token count.
func (m *Manager) CurrentTokens() int {
	return m.currentTokens
}

// PercentageUsed returns tokens over window. A zero window yields 0.
func (m *Manager) PercentageUsed() float64 {
	if m.contextWindow == 0 {
		return 0.0
	}
	return float64(m.currentTokens) / float64(m.contextWindow)
}

// State derives the budget state from the current percentage.
func (m *Manager) State() braidtypes.ContextState {
	pct := m.PercentageUsed()
	switch {
	case pct >= m.criticalThreshold:
		return braidtypes.ContextCritical
	case pct >= m.warningThreshold:
		return braidtypes.ContextWarning
	default:
		return braidtypes.ContextNormal
	}
}

// UpdateTokenCount sets the current token count and returns whether
// summarization should fire now. Registered callbacks are invoked
// synchronously and in registration order when it should.
func (m *Manager) UpdateTokenCount(tokens int) bool {
	m.currentTokens = tokens
	m.logTransition()

	should := m.shouldSummarize()
	if should {
		m.notify()
	}
	return should
}

// UpdateMessageCounts records how many messages exist and how many of
// them are already folded into the summary.
func (m *Manager) UpdateMessageCounts(total, summarized int) {
	m.totalMessages = total
	m.summarizedCount = summarized
}

// SignalDrift records a drift signal. Drift is a secondary signal: it
// triggers summarization only under token pressure, never in NORMAL
// state. Returns whether summarization fired.
func (m *Manager) SignalDrift() bool {
	m.driftPending = true
	state := m.State()
	if state == braidtypes.ContextWarning || state == braidtypes.ContextCritical {
		if !m.shouldSummarize() {
			return false
		}
		m.notify()
		return true
	}
	return false
}

// ClearDriftSignal drops a pending drift signal without summarizing.
func (m *Manager) ClearDriftSignal() {
	m.driftPending = false
}

// DriftPending reports whether an unhandled drift signal is recorded.
func (m *Manager) DriftPending() bool {
	return m.driftPending
}

// OnSummarize registers a listener invoked when summarization triggers.
func (m *Manager) OnSummarize(callback func()) {
	m.onSummarize = append(m.onSummarize, callback)
}

// MarkSummarized records the new summarized message count and clears
// any pending drift signal.
func (m *Manager) MarkSummarized(count int) {
	m.summarizedCount = count
	m.driftPending = false
}

// Status returns a read-only snapshot for display.
func (m *Manager) Status() braidtypes.ContextStatus {
	return braidtypes.ContextStatus{
		CurrentTokens:   m.currentTokens,
		ContextWindow:   m.contextWindow,
		Percentage:      m.PercentageUsed(),
		State:           m.State(),
		SummarizedCount: m.summarizedCount,
		ActiveCount:     m.totalMessages - m.summarizedCount,
	}
}

// Reset clears all tracked counts and the drift signal.
func (m *Manager) Reset() {
	m.currentTokens = 0
	m.totalMessages = 0
	m.summarizedCount = 0
	m.driftPending = false
	m.lastState = braidtypes.ContextNormal
}

// shouldSummarize is the trigger rule: never with fewer than 4 active
// messages; otherwise CRITICAL state triggers, and a pending drift
// signal triggers while in WARNING.
func (m *Manager) shouldSummarize() bool {
	active := m.totalMessages - m.summarizedCount
	if active < minActiveMessages {
		return false
	}

	switch m.State() {
	case braidtypes.ContextCritical:
		return true
	case braidtypes.ContextWarning:
		return m.driftPending
	default:
		return false
	}
}

func (m *Manager) notify() {
	for _, callback := range m.onSummarize {
		callback()
	}
}

func (m *Manager) logTransition() {
	state := m.State()
	if state != m.lastState {
		logger.ContextTransition(string(m.lastState), string(state), m.currentTokens, m.PercentageUsed())
		m.lastState = state
	}
}

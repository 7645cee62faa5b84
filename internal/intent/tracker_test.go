package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"braid/pkg/braidtypes"
)

func TestStartsInExplorationDefault(t *testing.T) {
	tr := NewTracker(0.3)
	assert.Equal(t, braidtypes.IntentExploration, tr.CurrentMode())
	assert.Equal(t, 0.5, tr.Confidence())
}

func TestAnalysisSignal(t *testing.T) {
	tr := NewTracker(0.3)
	signal := tr.Update("Explain why the cache misses")

	assert.Equal(t, braidtypes.IntentAnalysis, signal.Mode)
	assert.InDelta(t, 0.8, signal.Confidence, 1e-9)
	assert.Contains(t, signal.MatchedKeywords, "explain")
	assert.Contains(t, signal.MatchedKeywords, "why")

	assert.Equal(t, braidtypes.IntentAnalysis, tr.CurrentMode())
	assert.InDelta(t, 0.8, tr.Confidence(), 1e-9)
}

func TestDraftingSignal(t *testing.T) {
	tr := NewTracker(0.3)
	signal := tr.Update("Draft an outline for the launch post")
	assert.Equal(t, braidtypes.IntentDrafting, signal.Mode)
	assert.Equal(t, braidtypes.IntentDrafting, tr.CurrentMode())
}

func TestAdversarialSignal(t *testing.T) {
	tr := NewTracker(0.3)
	signal := tr.Update("Critique the flaw in this plan")
	assert.Equal(t, braidtypes.IntentAdversarial, signal.Mode)
	assert.Equal(t, braidtypes.IntentAdversarial, tr.CurrentMode())
}

func TestNoMatchKeepsExplorationLowConfidenceSignal(t *testing.T) {
	tr := NewTracker(0.3)
	signal := tr.Update("ok thanks")

	assert.Equal(t, braidtypes.IntentExploration, signal.Mode)
	assert.InDelta(t, 0.2, signal.Confidence, 1e-9)
	assert.Empty(t, signal.MatchedKeywords)

	// A weak signal never displaces the current state, and the
	// exploration default does not decay.
	assert.Equal(t, braidtypes.IntentExploration, tr.CurrentMode())
	assert.Equal(t, 0.5, tr.Confidence())
}

func TestDecayResetsToExploration(t *testing.T) {
	tr := NewTracker(0.3)
	tr.Update("Explain why the cache misses")
	assert.Equal(t, braidtypes.IntentAnalysis, tr.CurrentMode())

	tr.Update("ok")
	assert.Equal(t, braidtypes.IntentAnalysis, tr.CurrentMode())
	assert.InDelta(t, 0.5, tr.Confidence(), 1e-9)

	tr.Update("ok")
	assert.Equal(t, braidtypes.IntentExploration, tr.CurrentMode())
	assert.Equal(t, 0.5, tr.Confidence())
}

func TestWeakerSameModeSignalNotAdopted(t *testing.T) {
	tr := NewTracker(0.3)
	tr.Update("Explain why this works and describe how does it behave")
	assert.InDelta(t, 0.9, tr.Confidence(), 1e-9)

	// 22 words, one analysis match: confidence 0.5 with no bonus.
	signal := tr.Update("why did the team choose that approach over all the others during last quarter planning sessions across every region city office floor")
	assert.Equal(t, braidtypes.IntentAnalysis, signal.Mode)
	assert.InDelta(t, 0.5, signal.Confidence, 1e-9)

	// Decay brought the tracker to 0.6; the weaker same-mode signal
	// does not overwrite it.
	assert.Equal(t, braidtypes.IntentAnalysis, tr.CurrentMode())
	assert.InDelta(t, 0.6, tr.Confidence(), 1e-9)
}

func TestDifferentModeAdoptedAtFloor(t *testing.T) {
	tr := NewTracker(0.3)
	tr.Update("Explain why this works and describe how does it behave")

	signal := tr.Update("Draft a short reply")
	assert.Equal(t, braidtypes.IntentDrafting, signal.Mode)
	assert.GreaterOrEqual(t, signal.Confidence, 0.5)
	assert.Equal(t, braidtypes.IntentDrafting, tr.CurrentMode())
}

func TestConfidenceCap(t *testing.T) {
	signal := detectIntent("Explain why: analyze, compare, describe, clarify the difference")
	assert.Equal(t, braidtypes.IntentAnalysis, signal.Mode)
	assert.LessOrEqual(t, signal.Confidence, 0.9)
}

func TestPromptHint(t *testing.T) {
	tr := NewTracker(0.3)
	assert.Contains(t, tr.PromptHint(), "open exploration and brainstorming")

	tr.Update("Explain why the cache misses")
	hint := tr.PromptHint()
	assert.Contains(t, hint, "careful analysis and explanation")
	assert.Contains(t, hint, "Adjust tone and depth accordingly")
}

func TestReset(t *testing.T) {
	tr := NewTracker(0.3)
	tr.Update("Explain why the cache misses")
	tr.Reset()
	assert.Equal(t, braidtypes.IntentExploration, tr.CurrentMode())
	assert.Equal(t, 0.5, tr.Confidence())
}

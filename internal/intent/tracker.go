// Package intent infers the user's interaction mode from keyword
// heuristics. The inferred mode affects only the tone hint appended to
// the system prompt. It must never gate retrieval, document selection,
// or summarization.
package intent

import (
	"fmt"
	"sort"
	"strings"

	"braid/pkg/braidtypes"
)

// Pattern sets are matched as substrings against the lowercased message.
var analysisPatterns = []string{
	"explain", "why", "how does", "what is", "what are",
	"analyze", "analysis", "understand", "clarify",
	"meaning", "reason", "cause", "effect", "compare",
	"difference", "between", "relationship", "tell me about",
	"describe", "elaborate", "break down", "walk me through",
}

var draftingPatterns = []string{
	"write", "create", "draft", "compose", "generate",
	"make", "build", "produce", "design", "outline",
	"summarize", "rewrite", "edit", "revise", "format",
	"help me write", "can you write", "i need a",
}

var adversarialPatterns = []string{
	"challenge", "argue against", "what's wrong",
	"critique", "criticize", "flaw", "weakness",
	"devil's advocate", "counterargument", "refute",
	"disagree", "problem with", "issue with",
	"steelman", "strongest argument against",
}

var explorationPatterns = []string{
	"what if", "imagine", "brainstorm", "explore",
	"possibilities", "ideas", "think about", "consider",
	"options", "alternatives", "creative", "novel",
	"hypothetical", "scenario", "could we", "might",
}

var modeHints = map[braidtypes.IntentMode]string{
	braidtypes.IntentExploration: "open exploration and brainstorming",
	braidtypes.IntentAnalysis:    "careful analysis and explanation",
	braidtypes.IntentDrafting:    "content creation and drafting",
	braidtypes.IntentAdversarial: "critical examination and challenge",
}

const (
	defaultConfidence = 0.5
	resetFloor        = 0.3
	adoptFloor        = 0.5
	maxConfidence     = 0.9
	recentSignalCap   = 5
	shortMessageWords = 20
)

// Tracker infers and holds the current interaction mode. Confidence
// decays each turn toward the exploration default when the mode is not
// reinforced. Not safe for concurrent use.
type Tracker struct {
	mode          braidtypes.IntentMode
	confidence    float64
	decayRate     float64
	recentSignals []braidtypes.IntentSignal
}

// NewTracker creates a tracker in the exploration default with the
// given per-turn decay rate.
func NewTracker(decayRate float64) *Tracker {
	return &Tracker{
		mode:       braidtypes.IntentExploration,
		confidence: defaultConfidence,
		decayRate:  decayRate,
	}
}

// CurrentMode returns the current inferred mode.
func (t *Tracker) CurrentMode() braidtypes.IntentMode {
	return t.mode
}

// Confidence returns the confidence in the current mode.
func (t *Tracker) Confidence() float64 {
	return t.confidence
}

// Update scores a new user message and possibly switches mode. Decay is
// applied before scoring. The detected signal is adopted only when its
// confidence reaches 0.5 and it is either stronger than the current
// confidence or names a different mode.
func (t *Tracker) Update(message string) braidtypes.IntentSignal {
	t.applyDecay()

	signal := detectIntent(message)

	if signal.Confidence > resetFloor {
		t.recentSignals = append(t.recentSignals, signal)
		if len(t.recentSignals) > recentSignalCap {
			t.recentSignals = t.recentSignals[len(t.recentSignals)-recentSignalCap:]
		}

		if signal.Confidence > t.confidence || signal.Mode != t.mode {
			if signal.Confidence >= adoptFloor {
				t.mode = signal.Mode
				t.confidence = signal.Confidence
			}
		}
	}

	return signal
}

// PromptHint returns the low-priority tone hint for the system prompt.
func (t *Tracker) PromptHint() string {
	description, ok := modeHints[t.mode]
	if !ok {
		description = "open exploration"
	}
	return fmt.Sprintf(
		"[Current interaction mode appears to be: %s. Adjust tone and depth accordingly.]",
		description,
	)
}

// Reset restores the exploration default.
func (t *Tracker) Reset() {
	t.mode = braidtypes.IntentExploration
	t.confidence = defaultConfidence
	t.recentSignals = nil
}

func (t *Tracker) applyDecay() {
	if t.mode == braidtypes.IntentExploration {
		return
	}
	t.confidence -= t.decayRate
	if t.confidence < resetFloor {
		t.mode = braidtypes.IntentExploration
		t.confidence = defaultConfidence
	}
}

// detectIntent scores the message against all four pattern sets and
// returns the best mode. Ties resolve in a fixed mode order so results
// are deterministic.
func detectIntent(message string) braidtypes.IntentSignal {
	lower := strings.ToLower(message)

	candidates := []struct {
		mode     braidtypes.IntentMode
		patterns []string
	}{
		{braidtypes.IntentAnalysis, analysisPatterns},
		{braidtypes.IntentDrafting, draftingPatterns},
		{braidtypes.IntentAdversarial, adversarialPatterns},
		{braidtypes.IntentExploration, explorationPatterns},
	}

	bestMode := braidtypes.IntentExploration
	var bestMatches []string
	for _, c := range candidates {
		matches := matchPatterns(lower, c.patterns)
		if len(matches) > len(bestMatches) {
			bestMode = c.mode
			bestMatches = matches
		}
	}

	if len(bestMatches) == 0 {
		return braidtypes.IntentSignal{
			Mode:       braidtypes.IntentExploration,
			Confidence: 0.2,
		}
	}

	confidence := 0.3 + float64(len(bestMatches))*0.2
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	// Short focused messages carry a clearer signal.
	if len(strings.Fields(message)) < shortMessageWords {
		confidence += 0.1
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
	}

	sort.Strings(bestMatches)
	return braidtypes.IntentSignal{
		Mode:            bestMode,
		Confidence:      confidence,
		MatchedKeywords: bestMatches,
	}
}

func matchPatterns(text string, patterns []string) []string {
	var matches []string
	for _, p := range patterns {
		if strings.Contains(text, p) {
			matches = append(matches, p)
		}
	}
	return matches
}

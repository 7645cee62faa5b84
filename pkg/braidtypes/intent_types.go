// Package braidtypes defines intent inference types for braid.
package braidtypes

// IntentMode is the inferred user interaction mode. Intent affects only
// the tone hint appended to the system prompt; it must never gate
// retrieval, summarization, or document selection.
type IntentMode string

const (
	// IntentExploration is the default mode: open-ended, brainstorming.
	IntentExploration IntentMode = "exploration"
	// IntentAnalysis covers questions, explanations, why/how.
	IntentAnalysis IntentMode = "analysis"
	// IntentDrafting covers content creation and writing.
	IntentDrafting IntentMode = "drafting"
	// IntentAdversarial covers challenging, arguing, critiquing.
	IntentAdversarial IntentMode = "adversarial"
)

// IntentSignal is the outcome of scoring one user message.
type IntentSignal struct {
	Mode            IntentMode `json:"mode"`
	Confidence      float64    `json:"confidence"`
	MatchedKeywords []string   `json:"matched_keywords"`
}

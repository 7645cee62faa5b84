// Package tokens provides model-aware token estimation for braid's
// context budget management. None of the supported providers expose a
// public tokenizer from Go, so counts are calibrated approximations
// (roughly 4 characters per token for English) plus fixed structural
// overheads. Callers must treat results as estimates: the contract is
// monotonicity and rough proportionality, not exact counts.
package tokens

import (
	"unicode/utf8"

	"braid/pkg/braidtypes"
)

// Structural overheads applied on top of raw text estimates.
const (
	// perMessageOverhead covers role framing and separators.
	perMessageOverhead = 4
	// promptOverhead covers request-level structure.
	promptOverhead = 10
)

// Counter estimates token counts for a model family.
type Counter struct {
	modelID       string
	charsPerToken float64
}

// NewCounter creates a counter calibrated for the given model. All
// current families use the same ~4 chars/token calibration; the model
// ID is retained so family-specific calibration can attach here.
func NewCounter(modelID string) *Counter {
	return &Counter{
		modelID:       modelID,
		charsPerToken: 4.0,
	}
}

// ModelID returns the model this counter is calibrated for.
func (c *Counter) ModelID() string {
	return c.modelID
}

// CountText estimates tokens in a text string.
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	// Rune count for proper unicode handling.
	runeCount := utf8.RuneCountInString(text)
	n := int(float64(runeCount) / c.charsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

// CountMessages estimates tokens for a message list, including the
// per-message structural overhead.
func (c *Counter) CountMessages(messages []braidtypes.APIMessage) int {
	total := 0
	for _, msg := range messages {
		total += c.CountText(msg.Content)
		total += perMessageOverhead
	}
	return total
}

// CountPrompt estimates total tokens for a complete prompt: system
// text plus conversation messages plus request overhead.
func (c *Counter) CountPrompt(system string, messages []braidtypes.APIMessage) int {
	return c.CountText(system) + c.CountMessages(messages) + promptOverhead
}

// Package prompt assembles the system prompt and message list handed
// to a provider client. It never calls a provider and never decides
// when to summarize; it only builds payloads from what it is given.
package prompt

import (
	"fmt"
	"strings"

	"braid/internal/history"
	"braid/pkg/braidtypes"
)

// DefaultSystemPrompt is used when no custom prompt is configured.
const DefaultSystemPrompt = "You are a helpful assistant."

// Builder assembles prompts from the base system prompt, the injected
// context blocks, and the active conversation. Block order in the
// system prompt is fixed: base, summary, memory, scratchpad, retrieved
// context, intent hint. The intent hint comes last because it is the
// lowest-priority signal and must not override retrieved facts.
// Not safe for concurrent use; the controller serializes access.
type Builder struct {
	baseSystemPrompt string
	conversation     *history.Conversation

	summaryXML      string
	memoryBlock     string
	scratchpadBlock string
	ragBlock        string
	ragChunks       []braidtypes.RetrievedChunk
	intentHint      string
}

// NewBuilder creates a builder over the given conversation. An empty
// systemPrompt falls back to DefaultSystemPrompt.
func NewBuilder(systemPrompt string, conversation *history.Conversation) *Builder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Builder{
		baseSystemPrompt: systemPrompt,
		conversation:     conversation,
	}
}

// SetSummary installs the summary XML. A new summary fully replaces
// any previous one; an empty string clears. The conversational framing
// is added at assembly time, so Summary returns exactly what was set.
func (b *Builder) SetSummary(xmlSummary string) {
	b.summaryXML = xmlSummary
}

// Summary returns the raw summary XML, empty if unset.
func (b *Builder) Summary() string {
	return b.summaryXML
}

// ClearSummary removes the summary block.
func (b *Builder) ClearSummary() {
	b.summaryXML = ""
}

func (b *Builder) summaryBlock() string {
	if b.summaryXML == "" {
		return ""
	}
	return "PREVIOUS CONTEXT HAS BEEN SUMMARIZED AS FOLLOWS:\n\n" +
		b.summaryXML +
		"\n\nCONTINUE THE CONVERSATION SEAMLESSLY."
}

// SetMemory installs the opaque long-term memory block.
func (b *Builder) SetMemory(block string) {
	b.memoryBlock = block
}

// ClearMemory removes the memory block.
func (b *Builder) ClearMemory() {
	b.memoryBlock = ""
}

// SetScratchpad installs the opaque scratchpad block.
func (b *Builder) SetScratchpad(block string) {
	b.scratchpadBlock = block
}

// ClearScratchpad removes the scratchpad block.
func (b *Builder) ClearScratchpad() {
	b.scratchpadBlock = ""
}

// SetRAGContext formats retrieved chunks into a context block with
// sources and relevance scores. The block is visible to the model
// only, never shown in the transcript. An empty slice clears.
func (b *Builder) SetRAGContext(chunks []braidtypes.RetrievedChunk) {
	if len(chunks) == 0 {
		b.ragBlock = ""
		b.ragChunks = nil
		return
	}

	b.ragChunks = make([]braidtypes.RetrievedChunk, len(chunks))
	copy(b.ragChunks, chunks)

	var sb strings.Builder
	sb.WriteString("RELEVANT CONTEXT FROM ATTACHED DOCUMENTS:\n")
	sb.WriteString("(Use this information to inform your response. Cite sources when directly referencing content.)\n\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("[Source %d: %s", i+1, chunk.Source))
		if chunk.Section != "" {
			sb.WriteString(fmt.Sprintf("\n Section: %s", chunk.Section))
		}
		sb.WriteString(fmt.Sprintf("\n Relevance: %.2f]\n", chunk.Score))
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}
	b.ragBlock = strings.TrimRight(sb.String(), "\n")
}

// ClearRAGContext removes the retrieved context block.
func (b *Builder) ClearRAGContext() {
	b.ragBlock = ""
	b.ragChunks = nil
}

// RAGChunks returns the currently injected chunks for inspection.
func (b *Builder) RAGChunks() []braidtypes.RetrievedChunk {
	out := make([]braidtypes.RetrievedChunk, len(b.ragChunks))
	copy(out, b.ragChunks)
	return out
}

// SetIntentHint installs the low-priority tone hint.
func (b *Builder) SetIntentHint(hint string) {
	b.intentHint = hint
}

// ClearIntentHint removes the tone hint.
func (b *Builder) ClearIntentHint() {
	b.intentHint = ""
}

// SystemPrompt assembles the complete system prompt in block order.
func (b *Builder) SystemPrompt() string {
	parts := []string{b.baseSystemPrompt}
	for _, block := range []string{
		b.summaryBlock(),
		b.memoryBlock,
		b.scratchpadBlock,
		b.ragBlock,
		b.intentHint,
	} {
		if block != "" {
			parts = append(parts, "", block)
		}
	}
	return strings.Join(parts, "\n")
}

// BuildMessages returns the active (unsummarized) messages in API form.
func (b *Builder) BuildMessages() []braidtypes.APIMessage {
	active := b.conversation.ActiveMessages()
	out := make([]braidtypes.APIMessage, 0, len(active))
	for _, msg := range active {
		out = append(out, msg.ToAPI())
	}
	return out
}

// BuildAllMessages returns every message including summarized ones,
// useful for counting tokens over the full transcript.
func (b *Builder) BuildAllMessages() []braidtypes.APIMessage {
	all := b.conversation.Messages()
	out := make([]braidtypes.APIMessage, 0, len(all))
	for _, msg := range all {
		out = append(out, msg.ToAPI())
	}
	return out
}

// ClearContext removes every injected block, leaving only the base
// system prompt.
func (b *Builder) ClearContext() {
	b.summaryXML = ""
	b.memoryBlock = ""
	b.scratchpadBlock = ""
	b.ragBlock = ""
	b.ragChunks = nil
	b.intentHint = ""
}

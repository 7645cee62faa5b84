// Package summary compresses conversation history into one structured
// XML block via a single provider request. It never decides when to
// summarize and never retries; trigger and retry policy belong to the
// controller.
package summary

import (
	"context"
	"fmt"
	"strings"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

const summarySystemPrompt = "You are a precise summarization assistant. Output only valid XML."

const summaryPromptTemplate = `You are a context summarization assistant. Your task is to compress conversation history into a structured XML summary that preserves essential information for continuing the conversation.

Analyze the following conversation and create a summary in this exact XML format:

<ContextSummary>
    <GeneralSubject>The main topic or theme being discussed</GeneralSubject>
    <SpecificContext>
        <Subtopic>Specific areas or aspects being explored</Subtopic>
        <Entities>Key names, concepts, terms, or identifiers mentioned</Entities>
        <KeyPoints>Important facts, decisions, or conclusions reached</KeyPoints>
    </SpecificContext>
    <NextExpectedTopics>What the conversation seems to be heading toward</NextExpectedTopics>
    <UserIntent mode="%s">Brief description of user's apparent goal</UserIntent>
</ContextSummary>

Guidelines:
- Be concise but preserve all information needed to continue the conversation
- Include specific names, numbers, and technical terms
- Capture the user's apparent intent and goals
- Note any decisions made or preferences expressed
- The summary should allow seamless continuation without losing context

Conversation to summarize:
%s

Generate only the XML summary, nothing else.`

// requiredMarkers are the structural tags a valid summary must carry.
var requiredMarkers = []string{
	"<ContextSummary>",
	"</ContextSummary>",
	"<GeneralSubject>",
	"<SpecificContext>",
}

// Result is the outcome of one summarization attempt. On validation
// failure XML holds the raw cleaned text for debugging rather than
// being discarded.
type Result struct {
	XML                string
	MessagesSummarized int
	Success            bool
	Err                error
}

// Generator produces XML summaries through a provider client.
type Generator struct {
	maxTokens int
}

// NewGenerator creates a generator. maxTokens bounds the summary
// response size.
func NewGenerator(maxTokens int) *Generator {
	return &Generator{maxTokens: maxTokens}
}

// Generate runs one request/response summarization of the given
// messages. The caller bounds the attempt with ctx; on cancellation or
// provider error the result carries the error and Success is false.
func (g *Generator) Generate(ctx context.Context, messages []braidtypes.Message, client braidtypes.LLMClient, mode braidtypes.IntentMode) Result {
	if len(messages) == 0 {
		return Result{Err: fmt.Errorf("no messages to summarize")}
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, mode, formatConversation(messages))

	logger.SummarizationEvent("request", "messages", len(messages), "model", client.ModelID())

	raw, err := client.Complete(ctx, braidtypes.CompletionRequest{
		Messages:  []braidtypes.APIMessage{{Role: braidtypes.RoleUser, Content: prompt}},
		System:    summarySystemPrompt,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return Result{Err: fmt.Errorf("summary generation failed: %w", err)}
	}

	cleaned := extractXML(raw)
	if !validate(cleaned) {
		return Result{
			XML:                cleaned,
			MessagesSummarized: len(messages),
			Err:                fmt.Errorf("generated summary failed validation"),
		}
	}

	return Result{
		XML:                cleaned,
		MessagesSummarized: len(messages),
		Success:            true,
	}
}

// formatConversation renders messages as "ROLE: content" paragraphs.
func formatConversation(messages []braidtypes.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(msg.Role), msg.Content))
	}
	return strings.Join(lines, "\n\n")
}

// extractXML pulls the ContextSummary element out of a response that
// may carry surrounding prose. If no complete element is found the
// trimmed response is returned as-is for validation to reject.
func extractXML(response string) string {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "<ContextSummary>")
	end := strings.Index(response, "</ContextSummary>")
	if start != -1 && end != -1 {
		return response[start : end+len("</ContextSummary>")]
	}
	return response
}

func validate(xml string) bool {
	for _, marker := range requiredMarkers {
		if !strings.Contains(xml, marker) {
			return false
		}
	}
	return true
}

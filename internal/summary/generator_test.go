package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

const validXML = `<ContextSummary>
    <GeneralSubject>Database indexing</GeneralSubject>
    <SpecificContext>
        <Subtopic>Btree page splits</Subtopic>
        <Entities>btree, WAL</Entities>
        <KeyPoints>Splits amplify writes</KeyPoints>
    </SpecificContext>
    <NextExpectedTopics>Index tuning</NextExpectedTopics>
    <UserIntent mode="analysis">Understand index internals</UserIntent>
</ContextSummary>`

func testMessages() []braidtypes.Message {
	return []braidtypes.Message{
		{Role: braidtypes.RoleUser, Content: "How do btree page splits work?"},
		{Role: braidtypes.RoleAssistant, Content: "They split a full page into two."},
	}
}

func TestGenerateSuccess(t *testing.T) {
	client := testutils.NewMockLLMClient()
	client.QueueCompletion(validXML)

	g := NewGenerator(1000)
	result := g.Generate(context.Background(), testMessages(), client, braidtypes.IntentAnalysis)

	require.True(t, result.Success)
	require.NoError(t, result.Err)
	assert.Equal(t, validXML, result.XML)
	assert.Equal(t, 2, result.MessagesSummarized)
}

func TestGeneratePromptContents(t *testing.T) {
	client := testutils.NewMockLLMClient()
	client.QueueCompletion(validXML)

	g := NewGenerator(1000)
	g.Generate(context.Background(), testMessages(), client, braidtypes.IntentDrafting)

	require.Len(t, client.Calls, 1)
	call := client.Calls[0]
	require.Len(t, call.Messages, 1)
	assert.Contains(t, call.Messages[0].Content, `<UserIntent mode="drafting">`)
	assert.Contains(t, call.Messages[0].Content, "USER: How do btree page splits work?")
	assert.Contains(t, call.Messages[0].Content, "ASSISTANT: They split a full page into two.")
	assert.Equal(t, summarySystemPrompt, call.System)
	assert.Equal(t, 1000, call.MaxTokens)
}

func TestGenerateExtractsXMLFromProse(t *testing.T) {
	client := testutils.NewMockLLMClient()
	client.QueueCompletion("Here is the summary you asked for:\n\n" + validXML + "\n\nLet me know if you need anything else.")

	g := NewGenerator(1000)
	result := g.Generate(context.Background(), testMessages(), client, braidtypes.IntentExploration)

	require.True(t, result.Success)
	assert.Equal(t, validXML, result.XML)
}

func TestGenerateValidationFailurePreservesRawText(t *testing.T) {
	client := testutils.NewMockLLMClient()
	client.QueueCompletion("I cannot produce XML right now.")

	g := NewGenerator(1000)
	result := g.Generate(context.Background(), testMessages(), client, braidtypes.IntentExploration)

	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.Equal(t, "I cannot produce XML right now.", result.XML)
	assert.Equal(t, 2, result.MessagesSummarized)
}

func TestGenerateEmptyMessagesIsNoOpFailure(t *testing.T) {
	client := testutils.NewMockLLMClient()

	g := NewGenerator(1000)
	result := g.Generate(context.Background(), nil, client, braidtypes.IntentExploration)

	assert.False(t, result.Success)
	assert.Error(t, result.Err)
	assert.Empty(t, client.Calls)
}

func TestGenerateProviderError(t *testing.T) {
	client := testutils.NewMockLLMClient()
	client.FailCompletions(errors.New("rate limited"))

	g := NewGenerator(1000)
	result := g.Generate(context.Background(), testMessages(), client, braidtypes.IntentExploration)

	assert.False(t, result.Success)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "rate limited")
	assert.Empty(t, result.XML)
}

func TestValidateMarkers(t *testing.T) {
	assert.True(t, validate(validXML))
	assert.False(t, validate("<ContextSummary>missing closing tag"))
	assert.False(t, validate("<GeneralSubject>no envelope</GeneralSubject>"))
}

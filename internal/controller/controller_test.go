package controller

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/config"
	"braid/internal/store"
	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

const validSummaryXML = `<ContextSummary>
<GeneralSubject>Test conversation</GeneralSubject>
<SpecificContext>
<Subtopic>testing</Subtopic>
<Entities>none</Entities>
<KeyPoints>covered the basics</KeyPoints>
</SpecificContext>
<NextExpectedTopics>more testing</NextExpectedTopics>
<UserIntent mode="exploration">exploring</UserIntent>
</ContextSummary>`

func testSettingsValue() *config.Settings {
	return &config.Settings{
		SystemPrompt:      "You are a helpful assistant.",
		WarningThreshold:  config.DefaultWarningThreshold,
		CriticalThreshold: config.DefaultCriticalThreshold,
		DriftThreshold:    config.DefaultDriftThreshold,
		DriftWindow:       config.DefaultDriftWindow,
		IntentDecayRate:   config.DefaultIntentDecayRate,
		MinMessagesToKeep: config.DefaultMinMessagesToKeep,
		SummaryTimeout:    config.DefaultSummaryTimeout,
		SummaryMaxTokens:  config.DefaultSummaryMaxTokens,
		TestMode:          true,
	}
}

func newTestController(t *testing.T, contextWindow int) (*Controller, *testutils.MockLLMClient) {
	t.Helper()
	testutils.ResetCounters()

	settings := testSettingsValue()
	client := testutils.NewMockLLMClient()
	model := braidtypes.ModelCard{
		Name:            "mock-model",
		DisplayName:     "Mock Model",
		Provider:        "mock",
		ContextWindow:   contextWindow,
		MaxOutputTokens: 256,
	}
	return New(settings, model, client, nil), client
}

func runTurn(t *testing.T, c *Controller, client *testutils.MockLLMClient, text, reply string) string {
	t.Helper()
	client.QueueStream(reply)
	response, err := c.HandleUserMessage(context.Background(), text, nil)
	require.NoError(t, err)
	require.Equal(t, reply, response)
	return response
}

func TestTurnAppendsExchange(t *testing.T) {
	c, client := newTestController(t, 100000)

	var chunks []string
	client.QueueStream("Hello", " there")
	response, err := c.HandleUserMessage(context.Background(), "Hi", func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", response)
	assert.Equal(t, []string{"Hello", " there"}, chunks)

	messages := c.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Hi", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "Hello there", messages[1].Content)

	status := c.Status()
	assert.Positive(t, status.CurrentTokens)
	assert.Equal(t, 2, status.ActiveCount)
}

func TestEmptyMessageRejected(t *testing.T) {
	c, _ := newTestController(t, 100000)

	_, err := c.HandleUserMessage(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.Empty(t, c.Messages())
}

func TestSummarizationTriggersUnderTokenPressure(t *testing.T) {
	c, client := newTestController(t, 10000)
	client.QueueCompletion(validSummaryXML)

	// Each user message is roughly 1,000 tokens against a 10,000-token
	// window with a 0.80 critical threshold, so the trigger must fire
	// by the turn where the cumulative count first passes 8,000.
	filler := strings.Repeat("x", 4000)

	for i := 0; i < 10; i++ {
		runTurn(t, c, client, filler, "ok")
	}

	require.Eventually(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	c.WaitForSummarization()
	status := c.Status()
	assert.Equal(t, validSummaryXML, c.SummaryXML())
	assert.GreaterOrEqual(t, status.ActiveCount, 4)
	assert.Equal(t, 20, status.ActiveCount+status.SummarizedCount)
	assert.Less(t, status.CurrentTokens, 8000)
}

func TestDriftUnderWarningPressureTriggersSummarization(t *testing.T) {
	c, client := newTestController(t, 10000)
	client.QueueCompletion(validSummaryXML)

	// Four on-topic turns land the budget in the warning band without
	// reaching critical; the fifth turn changes subject entirely.
	onTopic := strings.Repeat("database schema migration planning for the orders table ", 102)
	offTopic := strings.Repeat("quantum entanglement photon experiments in the laboratory ", 99)

	for i := 0; i < 4; i++ {
		runTurn(t, c, client, onTopic, "ok")
	}
	require.Equal(t, braidtypes.ContextNormal, c.Status().State)

	runTurn(t, c, client, offTopic, "ok")

	require.Eventually(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentStreamsDoNotInterleave(t *testing.T) {
	c, client := newTestController(t, 100000)
	client.Gate = make(chan struct{})
	client.QueueStream("a1", "a2")
	client.QueueStream("b1", "b2")

	var mu sync.Mutex
	var log []string
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.HandleUserMessage(context.Background(), "first question", record)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := c.HandleUserMessage(context.Background(), "second question", record)
		assert.NoError(t, err)
	}()

	for i := 0; i < 4; i++ {
		client.Gate <- struct{}{}
	}
	wg.Wait()

	require.Len(t, log, 4)
	// Chunks from one stream must be contiguous, never interleaved
	// with the other stream's chunks.
	assert.Equal(t, log[0][:1], log[1][:1])
	assert.Equal(t, log[2][:1], log[3][:1])
	assert.NotEqual(t, log[0][:1], log[2][:1])

	messages := c.Messages()
	assert.Len(t, messages, 4)
}

func TestCancellationCommitsPartialText(t *testing.T) {
	c, client := newTestController(t, 100000)
	client.Gate = make(chan struct{})
	client.QueueStream("partial", "rest")

	ctx, cancel := context.WithCancel(context.Background())
	gotChunk := make(chan struct{})
	done := make(chan struct{})

	var response string
	var err error
	go func() {
		defer close(done)
		response, err = c.HandleUserMessage(ctx, "tell me everything", func(string) {
			close(gotChunk)
		})
	}()

	client.Gate <- struct{}{}
	<-gotChunk
	cancel()
	<-done

	require.Error(t, err)
	assert.Equal(t, "partial", response)

	messages := c.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "partial", messages[1].Content)
}

func TestCancellationBeforeAnyTextRollsBackUserMessage(t *testing.T) {
	c, client := newTestController(t, 100000)
	client.Gate = make(chan struct{})
	client.QueueStream("never delivered")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.HandleUserMessage(ctx, "doomed question", nil)
	require.Error(t, err)
	assert.Empty(t, c.Messages())
	assert.Equal(t, 0, c.Status().ActiveCount)
}

func TestRegenerateReplacesAssistant(t *testing.T) {
	c, client := newTestController(t, 100000)
	runTurn(t, c, client, "question", "first answer")

	client.QueueStream("second answer")
	response, err := c.Regenerate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second answer", response)

	messages := c.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "second answer", messages[1].Content)
}

func TestRegenerateFailsWithoutTrailingAssistant(t *testing.T) {
	c, _ := newTestController(t, 100000)

	_, err := c.Regenerate(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, c.Messages())
}

func TestRollbackRemovesExchange(t *testing.T) {
	c, client := newTestController(t, 100000)
	runTurn(t, c, client, "question", "answer")

	require.True(t, c.Rollback())
	assert.Empty(t, c.Messages())
	assert.False(t, c.Rollback())
}

func TestWaypointBoundsSummarization(t *testing.T) {
	c, client := newTestController(t, 200)
	client.QueueCompletion(validSummaryXML)

	filler := strings.Repeat("word ", 32)

	runTurn(t, c, client, filler, "ok")
	_, err := c.AddWaypoint()
	require.NoError(t, err)

	runTurn(t, c, client, filler, "ok")
	runTurn(t, c, client, filler, "ok")

	require.Eventually(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 2*time.Second, 10*time.Millisecond)

	c.WaitForSummarization()
	// The waypoint sits at message index 1, so summarization must stop
	// there rather than at the default boundary.
	assert.Equal(t, 2, c.Status().SummarizedCount)
	assert.Empty(t, c.Waypoints())
}

func TestSummarizationSkippedAtMinimumHistory(t *testing.T) {
	c, client := newTestController(t, 200)
	client.QueueCompletion(validSummaryXML)

	// Two turns leave exactly MinMessagesToKeep messages while token
	// pressure reaches CRITICAL. Summarizing would leave nothing
	// active, so the trigger must skip instead of consuming the
	// whole history.
	filler := strings.Repeat("word ", 60)
	runTurn(t, c, client, filler, "ok")
	runTurn(t, c, client, filler, "ok")

	require.Equal(t, braidtypes.ContextCritical, c.Status().State)

	assert.Never(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 300*time.Millisecond, 20*time.Millisecond)

	status := c.Status()
	assert.Equal(t, 4, status.ActiveCount)
	assert.Zero(t, status.SummarizedCount)
	assert.Empty(t, c.SummaryXML())
	assert.Len(t, c.Messages(), 4)
}

func TestSummarizationFailureLeavesStateUntouched(t *testing.T) {
	c, client := newTestController(t, 200)
	// No completion queued: every summary attempt fails.

	filler := strings.Repeat("word ", 32)
	for i := 0; i < 3; i++ {
		runTurn(t, c, client, filler, "ok")
	}

	assert.Never(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 300*time.Millisecond, 20*time.Millisecond)
	assert.Empty(t, c.SummaryXML())
	assert.Len(t, c.Messages(), 6)
}

func TestRetrievedContextInjectedIntoSystemPrompt(t *testing.T) {
	c, client := newTestController(t, 100000)

	chunks := c.AttachDocument("guide", "brewing.md",
		"Pour over coffee needs a medium grind and water at 96 degrees.\n\n"+
			"Bloom the grounds for thirty seconds before the main pour.")
	require.Equal(t, 2, chunks)

	client.QueueStream("sure")
	_, err := c.HandleUserMessage(context.Background(), "how hot should pour over coffee water be", nil)
	require.NoError(t, err)

	require.NotEmpty(t, client.Calls)
	system := client.Calls[0].System
	assert.Contains(t, system, "RELEVANT CONTEXT FROM ATTACHED DOCUMENTS")
	assert.Contains(t, system, "brewing.md")

	require.True(t, c.DetachDocument("guide"))
	assert.False(t, c.DetachDocument("guide"))
}

func TestActiveMessagesOnlyAfterSummarization(t *testing.T) {
	c, client := newTestController(t, 10000)
	client.QueueCompletion(validSummaryXML)

	filler := strings.Repeat("x", 4000)
	for i := 0; i < 10; i++ {
		runTurn(t, c, client, filler, "ok")
	}

	require.Eventually(t, func() bool {
		return c.Status().SummarizedCount > 0
	}, 2*time.Second, 10*time.Millisecond)
	c.WaitForSummarization()

	client.QueueStream("done")
	_, err := c.HandleUserMessage(context.Background(), "short follow up", nil)
	require.NoError(t, err)

	last := client.Calls[len(client.Calls)-1]
	status := c.Status()
	// The prompt carries only active messages plus the summary block.
	assert.Len(t, last.Messages, status.ActiveCount-1)
	assert.Contains(t, last.System, "PREVIOUS CONTEXT HAS BEEN SUMMARIZED AS FOLLOWS:")
	assert.Contains(t, last.System, "<ContextSummary>")
}

func TestSessionRoundTrip(t *testing.T) {
	sessions, err := store.NewSessionStore(t.TempDir())
	require.NoError(t, err)

	settings := testSettingsValue()
	client := testutils.NewMockLLMClient()
	model := braidtypes.ModelCard{Name: "mock-model", Provider: "mock", ContextWindow: 100000, MaxOutputTokens: 256}
	c := New(settings, model, client, sessions)

	runTurn(t, c, client, "remember this", "noted")
	_, err = c.AddWaypoint()
	require.NoError(t, err)
	require.NoError(t, c.SaveSession("demo"))

	restored := New(settings, model, testutils.NewMockLLMClient(), sessions)
	require.NoError(t, restored.LoadSession(c.SessionID()))

	assert.Equal(t, c.Messages(), restored.Messages())
	assert.Equal(t, c.Waypoints(), restored.Waypoints())
	assert.Equal(t, c.SessionID(), restored.SessionID())
	assert.Positive(t, restored.Status().CurrentTokens)
}

func TestSetClientResizesWindow(t *testing.T) {
	c, _ := newTestController(t, 10000)

	bigger := braidtypes.ModelCard{Name: "mock-large", Provider: "mock", ContextWindow: 200000, MaxOutputTokens: 1024}
	c.SetClient(testutils.NewMockLLMClient(), bigger)

	assert.Equal(t, 200000, c.Status().ContextWindow)
}

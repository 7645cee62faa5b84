// Package controller orchestrates the conversation turn loop. It wires
// the budget manager, drift detector, intent tracker, waypoints,
// history, prompt builder, summary generator, and retrieval index
// behind three locks: at most one streaming response, at most one
// summarization, and serialized retrieval-index access.
//
// Lock order is summarizeMu before streamMu. The turn loop waits out
// any in-flight summarization before taking the stream lock; the
// background summarizer takes the stream lock only to commit its
// result, so conversation state is never mutated mid-stream.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"braid/internal/budget"
	"braid/internal/catalog"
	"braid/internal/config"
	"braid/internal/drift"
	"braid/internal/history"
	"braid/internal/intent"
	"braid/internal/llm"
	"braid/internal/logger"
	"braid/internal/prompt"
	"braid/internal/retrieval"
	"braid/internal/store"
	"braid/internal/summary"
	"braid/internal/testutils"
	"braid/internal/tokens"
	"braid/internal/waypoint"
	"braid/pkg/braidtypes"
)

// Controller owns one conversation session and the components that
// manage its context budget.
type Controller struct {
	settings *config.Settings

	conversation *history.Conversation
	builder      *prompt.Builder
	budget       *budget.Manager
	drift        *drift.Detector
	intent       *intent.Tracker
	waypoints    *waypoint.Manager
	counter      *tokens.Counter
	generator    *summary.Generator
	index        *retrieval.Index
	sessions     *store.SessionStore

	client braidtypes.LLMClient
	model  braidtypes.ModelCard

	sessionID   string
	sessionName string
	modelsUsed  []string

	streamMu    sync.Mutex
	summarizeMu sync.Mutex
	indexMu     sync.Mutex

	// streaming is set only while response chunks are being consumed.
	streaming atomic.Bool
}

// summarizeJob is the state snapshot handed to the background
// summarizer when the budget trigger fires. Snapshotting happens
// under the stream lock; generation happens lock-free on the copy.
type summarizeJob struct {
	messages []braidtypes.Message
	mode     braidtypes.IntentMode
}

// New wires a controller from settings, a model card, and the provider
// client for that model. client may be nil until SetClient is called;
// sessions may be nil when persistence is not needed.
func New(settings *config.Settings, model braidtypes.ModelCard, client braidtypes.LLMClient, sessions *store.SessionStore) *Controller {
	conversation := history.NewConversation(settings.TestMode)

	c := &Controller{
		settings:     settings,
		conversation: conversation,
		builder:      prompt.NewBuilder(settings.SystemPrompt, conversation),
		budget:       budget.NewManager(model.ContextWindow, settings.WarningThreshold, settings.CriticalThreshold),
		drift:        drift.NewDetector(settings.DriftWindow, settings.DriftThreshold),
		intent:       intent.NewTracker(settings.IntentDecayRate),
		waypoints:    waypoint.NewManager(settings.TestMode),
		counter:      tokens.NewCounter(model.Name),
		generator:    summary.NewGenerator(settings.SummaryMaxTokens),
		index:        retrieval.NewIndex(),
		sessions:     sessions,
		client:       client,
		model:        model,
		sessionID:    testutils.GenerateUUID(settings.TestMode),
	}
	if client != nil {
		c.modelsUsed = []string{model.Name}
	}

	c.budget.OnSummarize(c.onSummarizeTriggered)
	return c
}

// SetClient switches the provider client and model card, resizing the
// budget window for the new model.
func (c *Controller) SetClient(client braidtypes.LLMClient, model braidtypes.ModelCard) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	c.client = client
	c.model = model
	c.counter = tokens.NewCounter(model.Name)
	c.budget.SetContextWindow(model.ContextWindow)
	c.recordModelUsed(model.Name)
	c.recountTokens()
	logger.Info("Model switched", "model", model.Name, "window", model.ContextWindow)
}

// SetModelByName looks the model up in the embedded catalog, builds a
// provider client for it, and switches to it.
func (c *Controller) SetModelByName(name string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	card, err := cat.Lookup(name)
	if err != nil {
		return err
	}
	client, err := llm.NewClient(c.settings, card)
	if err != nil {
		return err
	}
	c.SetClient(client, card)
	return nil
}

// Status returns a read-only context budget snapshot.
func (c *Controller) Status() braidtypes.ContextStatus {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.budget.Status()
}

// IntentMode returns the current inferred interaction mode.
func (c *Controller) IntentMode() braidtypes.IntentMode {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.intent.CurrentMode()
}

// SummaryXML returns the raw XML of the active summary, empty if none.
func (c *Controller) SummaryXML() string {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.builder.Summary()
}

// Messages returns a copy of the full transcript.
func (c *Controller) Messages() []braidtypes.Message {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.conversation.Messages()
}

// HandleUserMessage runs one turn: append the user message, update
// intent and drift, refresh retrieved context, recount the budget, and
// stream the assistant response. Chunks are delivered to onChunk as
// they arrive; the full response is returned.
//
// Cancellation is two-branch. Text produced before ctx was cancelled
// commits as a complete assistant message; if nothing was produced the
// user message is rolled back and the turn never happened.
func (c *Controller) HandleUserMessage(ctx context.Context, text string, onChunk func(string)) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty message")
	}

	// Wait out any in-flight summarization so this turn's prompt
	// reflects the committed summary. Must not hold streamMu here.
	c.WaitForSummarization()

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.client == nil {
		return "", fmt.Errorf("no model configured")
	}

	c.conversation.AddUser(text)

	signal := c.intent.Update(text)
	c.builder.SetIntentHint(c.intent.PromptHint())
	logger.Debug("Intent updated", "mode", signal.Mode, "confidence", signal.Confidence)

	driftResult := c.drift.Analyze(text)
	if driftResult.IsDrift {
		logger.Debug("Drift detected", "similarity", driftResult.Similarity)
		c.budget.SignalDrift()
	}

	c.injectRetrievedContext(ctx, text)

	// The budget update and its trigger callback run synchronously
	// before the stream begins, so a threshold crossing is acted on
	// within the same turn.
	c.recountTokens()

	response, err := c.streamResponse(ctx, onChunk)
	if err != nil {
		if response == "" {
			c.conversation.RemoveLastUser()
			c.recountTokens()
			return "", err
		}
		logger.StreamEvent("interrupted", "committed_chars", len(response))
		c.conversation.AddAssistant(response)
		c.recountTokens()
		return response, err
	}

	c.conversation.AddAssistant(response)
	c.recountTokens()
	return response, nil
}

// Regenerate removes the last assistant message and streams a fresh
// response to the same user message. It fails without mutation if the
// conversation does not end with an assistant message.
func (c *Controller) Regenerate(ctx context.Context, onChunk func(string)) (string, error) {
	c.WaitForSummarization()

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.client == nil {
		return "", fmt.Errorf("no model configured")
	}
	if !c.conversation.RemoveLastAssistant() {
		return "", fmt.Errorf("no assistant message to regenerate")
	}
	c.recountTokens()

	response, err := c.streamResponse(ctx, onChunk)
	if err != nil && response == "" {
		return "", err
	}

	c.conversation.AddAssistant(response)
	c.recountTokens()
	return response, err
}

// Rollback removes the trailing user and assistant exchange atomically.
func (c *Controller) Rollback() bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if !c.conversation.RemoveLastExchange() {
		return false
	}
	c.recountTokens()
	return true
}

// AddWaypoint marks the current last message as a summarization
// boundary candidate.
func (c *Controller) AddWaypoint() (braidtypes.WaypointRecord, error) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.conversation.Len() == 0 {
		return braidtypes.WaypointRecord{}, fmt.Errorf("no messages to mark")
	}
	return c.waypoints.Add(c.conversation.Len() - 1), nil
}

// RemoveWaypoint deletes the waypoint at the given message index.
func (c *Controller) RemoveWaypoint(index int) bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.waypoints.Remove(index)
}

// Waypoints returns a copy of the current waypoint records.
func (c *Controller) Waypoints() []braidtypes.WaypointRecord {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.waypoints.Records()
}

// AttachDocument indexes a document for retrieval and returns the
// number of chunks produced.
func (c *Controller) AttachDocument(docID, source, text string) int {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	return c.index.AddDocument(docID, source, text)
}

// DetachDocument removes a document from the retrieval index.
func (c *Controller) DetachDocument(docID string) bool {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	return c.index.RemoveDocument(docID)
}

// SetMemory installs the opaque long-term memory block.
func (c *Controller) SetMemory(block string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.builder.SetMemory(block)
	c.recountTokens()
}

// SetScratchpad installs the opaque scratchpad block.
func (c *Controller) SetScratchpad(block string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.builder.SetScratchpad(block)
	c.recountTokens()
}

// WaitForSummarization blocks until any in-flight summarization has
// committed or failed. Callers must not hold streamMu.
func (c *Controller) WaitForSummarization() {
	c.summarizeMu.Lock()
	c.summarizeMu.Unlock() //nolint:staticcheck // acquire-then-release barrier
}

// streamResponse consumes one streaming completion. It returns the
// text accumulated so far together with any error so the caller can
// apply the two-branch cancellation contract. Callers hold streamMu.
func (c *Controller) streamResponse(ctx context.Context, onChunk func(string)) (string, error) {
	req := braidtypes.CompletionRequest{
		Messages:  c.builder.BuildMessages(),
		System:    c.builder.SystemPrompt(),
		MaxTokens: c.model.MaxOutputTokens,
	}

	stream, err := c.client.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("stream request failed: %w", err)
	}

	c.streaming.Store(true)
	defer c.streaming.Store(false)
	logger.StreamEvent("started", "model", c.model.Name)

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				logger.StreamEvent("completed", "chars", sb.Len())
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return sb.String(), fmt.Errorf("stream failed: %w", chunk.Error)
			}
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if onChunk != nil {
					onChunk(chunk.Content)
				}
			}
			if chunk.Done {
				logger.StreamEvent("completed", "chars", sb.Len())
				return sb.String(), nil
			}
		}
	}
}

// injectRetrievedContext queries the index for the new message and
// installs the results, clearing stale context when the index is empty.
func (c *Controller) injectRetrievedContext(ctx context.Context, query string) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	if c.index.ChunkCount() == 0 {
		c.builder.ClearRAGContext()
		return
	}
	chunks, err := c.index.Retrieve(ctx, query, 5)
	if err != nil {
		logger.Warn("Retrieval failed", "error", err)
		return
	}
	c.builder.SetRAGContext(chunks)
}

// recountTokens recomputes the full prompt token count and updates the
// budget manager, which may fire the summarization trigger. Callers
// hold streamMu.
func (c *Controller) recountTokens() {
	c.budget.UpdateMessageCounts(c.conversation.Len(), c.conversation.SummarizedUpTo())
	count := c.counter.CountPrompt(c.builder.SystemPrompt(), c.builder.BuildMessages())
	c.budget.UpdateTokenCount(count)
}

// onSummarizeTriggered is the budget manager's callback. It snapshots
// the summarizable prefix synchronously (the caller holds streamMu)
// and hands generation to a background goroutine. A trigger that
// arrives while a summarization is already running is dropped; it
// fires again on the next budget update.
func (c *Controller) onSummarizeTriggered() {
	if c.client == nil {
		return
	}
	if c.streaming.Load() {
		logger.SummarizationEvent("refused", "reason", "stream in flight")
		return
	}

	boundary, ok := c.summarizationBoundary()
	if !ok {
		logger.SummarizationEvent("skipped", "reason", "too few messages beyond the keep window")
		return
	}
	snapshot := c.conversation.MessagesForSummarization(boundary)
	if len(snapshot) == 0 {
		logger.SummarizationEvent("skipped", "reason", "no active messages below boundary")
		return
	}

	job := summarizeJob{
		messages: snapshot,
		mode:     c.intent.CurrentMode(),
	}
	go c.summarizeInBackground(job, c.client)
}

// summarizeInBackground generates a summary for a snapshotted prefix
// and commits it under the stream lock. Failures are logged only; the
// summary block, history cursor, and waypoints stay untouched.
func (c *Controller) summarizeInBackground(job summarizeJob, client braidtypes.LLMClient) {
	if !c.summarizeMu.TryLock() {
		logger.SummarizationEvent("refused", "reason", "summarization in flight")
		return
	}
	defer c.summarizeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.settings.SummaryTimeout)
	defer cancel()

	result := c.generator.Generate(ctx, job.messages, client, job.mode)
	if !result.Success {
		logger.SummarizationEvent("failed", "error", result.Err)
		return
	}

	c.commitSummary(job, result.XML)
}

// commitSummary applies a successful summarization. The boundary may be
// stale if messages arrived during generation; the history cursor is
// monotonic, so a stale mark still only covers the snapshotted prefix.
func (c *Controller) commitSummary(job summarizeJob, xml string) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	newCursor := job.messages[len(job.messages)-1].Index + 1
	c.conversation.MarkSummarized(newCursor)
	c.builder.SetSummary(xml)
	c.budget.MarkSummarized(c.conversation.SummarizedUpTo())

	removed := c.waypoints.ClearThrough(newCursor - 1)

	var activeTexts []string
	for _, msg := range c.conversation.ActiveMessages() {
		activeTexts = append(activeTexts, msg.Content)
	}
	c.drift.Rebaseline(activeTexts)

	c.recountTokens()

	logger.SummarizationEvent("completed",
		"summarized", len(job.messages),
		"cursor", newCursor,
		"waypoints_cleared", removed)
}

// summarizationBoundary picks where summarization stops: the highest
// qualifying waypoint if one exists, otherwise everything except the
// most recent MinMessagesToKeep messages. Reports false when the
// default boundary falls inside the already-summarized prefix, so the
// keep window always survives a summarization pass intact.
func (c *Controller) summarizationBoundary() (int, bool) {
	total := c.conversation.Len()
	if b, ok := c.waypoints.Boundary(total, c.settings.MinMessagesToKeep); ok {
		return b, true
	}
	boundary := total - c.settings.MinMessagesToKeep - 1
	if boundary < c.conversation.SummarizedUpTo() {
		return 0, false
	}
	return boundary, true
}

// SaveSession persists the session record through the store.
func (c *Controller) SaveSession(name string) error {
	if c.sessions == nil {
		return fmt.Errorf("no session store configured")
	}

	c.WaitForSummarization()

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if name != "" {
		c.sessionName = name
	}
	now := testutils.Now(c.settings.TestMode)
	record := &braidtypes.SessionRecord{
		ID:             c.sessionID,
		Name:           c.sessionName,
		Messages:       c.conversation.Messages(),
		SummarizedUpTo: c.conversation.SummarizedUpTo(),
		SummaryXML:     c.builder.Summary(),
		Waypoints:      c.waypoints.Records(),
		TokenCount:     c.budget.CurrentTokens(),
		ModelsUsed:     append([]string(nil), c.modelsUsed...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return c.sessions.Save(record)
}

// LoadSession replaces the controller's state with a stored session.
func (c *Controller) LoadSession(id string) error {
	if c.sessions == nil {
		return fmt.Errorf("no session store configured")
	}
	record, err := c.sessions.Load(id)
	if err != nil {
		return err
	}

	c.WaitForSummarization()

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	c.sessionID = record.ID
	c.sessionName = record.Name
	c.conversation.Restore(record.Messages, record.SummarizedUpTo)
	c.waypoints.Restore(record.Waypoints)
	c.builder.SetSummary(record.SummaryXML)
	c.modelsUsed = append([]string(nil), record.ModelsUsed...)

	c.intent.Reset()
	c.builder.ClearIntentHint()

	var activeTexts []string
	for _, msg := range c.conversation.ActiveMessages() {
		activeTexts = append(activeTexts, msg.Content)
	}
	c.drift.Rebaseline(activeTexts)

	c.recountTokens()
	logger.Info("Session loaded", "id", record.ID, "messages", len(record.Messages))
	return nil
}

// SessionID returns the current session's identifier.
func (c *Controller) SessionID() string {
	return c.sessionID
}

func (c *Controller) recordModelUsed(name string) {
	for _, used := range c.modelsUsed {
		if used == name {
			return
		}
	}
	c.modelsUsed = append(c.modelsUsed, name)
}

package testutils

import (
	"context"
	"fmt"
	"sync"

	"braid/pkg/braidtypes"
)

// MockLLMClient implements braidtypes.LLMClient for testing. Responses
// for Complete and chunk scripts for Stream are queued in order; error
// injection and chunk gating support concurrency tests.
type MockLLMClient struct {
	mu sync.Mutex

	completions []string
	completeErr error

	scripts   [][]string
	streamErr error

	// Gate, when set, is received from before each scripted chunk is
	// delivered, letting a test control interleaving.
	Gate chan struct{}

	// Calls records every request handed to the client.
	Calls []braidtypes.CompletionRequest

	provider string
	model    string
}

// NewMockLLMClient creates a mock client with sensible identifiers.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{provider: "mock", model: "mock-model"}
}

// QueueCompletion queues a response for the next Complete call.
func (m *MockLLMClient) QueueCompletion(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, text)
}

// FailCompletions makes all subsequent Complete calls return err.
func (m *MockLLMClient) FailCompletions(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeErr = err
}

// QueueStream queues a chunk script for the next Stream call.
func (m *MockLLMClient) QueueStream(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, chunks)
}

// FailStreams makes subsequent streams end with err on the final chunk.
func (m *MockLLMClient) FailStreams(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
}

// Complete returns the next queued completion.
func (m *MockLLMClient) Complete(ctx context.Context, req braidtypes.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	err := m.completeErr
	var text string
	if len(m.completions) > 0 {
		text = m.completions[0]
		m.completions = m.completions[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if text == "" {
		return "", fmt.Errorf("mock: no completion queued")
	}
	return text, nil
}

// Stream delivers the next queued chunk script, honoring the gate and
// context cancellation between chunks.
func (m *MockLLMClient) Stream(ctx context.Context, req braidtypes.CompletionRequest) (<-chan braidtypes.StreamChunk, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	var script []string
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	streamErr := m.streamErr
	gate := m.Gate
	m.mu.Unlock()

	ch := make(chan braidtypes.StreamChunk, len(script)+1)
	go func() {
		defer close(ch)
		for _, chunk := range script {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					ch <- braidtypes.StreamChunk{Done: true, Error: ctx.Err()}
					return
				}
			}
			select {
			case <-ctx.Done():
				ch <- braidtypes.StreamChunk{Done: true, Error: ctx.Err()}
				return
			default:
			}
			ch <- braidtypes.StreamChunk{Content: chunk}
		}
		ch <- braidtypes.StreamChunk{Done: true, Error: streamErr}
	}()
	return ch, nil
}

// ProviderName implements braidtypes.LLMClient.
func (m *MockLLMClient) ProviderName() string { return m.provider }

// ModelID implements braidtypes.LLMClient.
func (m *MockLLMClient) ModelID() string { return m.model }

// IsConfigured implements braidtypes.LLMClient.
func (m *MockLLMClient) IsConfigured() bool { return true }

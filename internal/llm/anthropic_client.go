// Package llm provides provider client implementations behind the
// braidtypes.LLMClient interface. Clients initialize their SDKs lazily
// so the orchestration core stays constructible and testable without
// live credentials.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

// AnthropicClient implements braidtypes.LLMClient for Anthropic's API.
type AnthropicClient struct {
	apiKey string
	model  braidtypes.ModelCard
	client *anthropic.Client
}

// NewAnthropicClient creates a client for the given model card. The SDK
// client is created only when the first request is made.
func NewAnthropicClient(apiKey string, model braidtypes.ModelCard) *AnthropicClient {
	return &AnthropicClient{apiKey: apiKey, model: model}
}

// ProviderName returns "anthropic".
func (c *AnthropicClient) ProviderName() string {
	return "anthropic"
}

// ModelID returns the configured model name.
func (c *AnthropicClient) ModelID() string {
	return c.model.Name
}

// IsConfigured reports whether an API key is present.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *AnthropicClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}
	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	c.client = &client
	logger.Debug("Anthropic client initialized", "provider", "anthropic")
	return nil
}

// Complete sends a non-streaming message request.
func (c *AnthropicClient) Complete(ctx context.Context, req braidtypes.CompletionRequest) (string, error) {
	logger.Debug("Anthropic completion starting", "model", c.model.Name)

	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize Anthropic client: %w", err)
	}

	params := c.buildParams(req)
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("Anthropic request failed", "error", err)
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("no response content returned")
	}

	var content string
	for _, block := range message.Content {
		content += block.Text
	}
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("Anthropic response received", "content_length", len(content))
	return content, nil
}

// Stream sends a completion and delivers the result as a content chunk
// followed by a done chunk.
func (c *AnthropicClient) Stream(ctx context.Context, req braidtypes.CompletionRequest) (<-chan braidtypes.StreamChunk, error) {
	content, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	responseChan := make(chan braidtypes.StreamChunk, 2)
	go func() {
		defer close(responseChan)
		responseChan <- braidtypes.StreamChunk{Content: content}
		responseChan <- braidtypes.StreamChunk{Done: true}
	}()
	return responseChan, nil
}

func (c *AnthropicClient) buildParams(req braidtypes.CompletionRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case braidtypes.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case braidtypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			continue
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 || maxTokens > c.model.MaxOutputTokens {
		maxTokens = c.model.MaxOutputTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model.Name),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

// OpenAIClient implements braidtypes.LLMClient for OpenAI's chat
// completions API, with real token streaming.
type OpenAIClient struct {
	apiKey string
	model  braidtypes.ModelCard
	client *openai.Client
}

// NewOpenAIClient creates a client for the given model card with lazy
// SDK initialization.
func NewOpenAIClient(apiKey string, model braidtypes.ModelCard) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, model: model}
}

// ProviderName returns "openai".
func (c *OpenAIClient) ProviderName() string {
	return "openai"
}

// ModelID returns the configured model name.
func (c *OpenAIClient) ModelID() string {
	return c.model.Name
}

// IsConfigured reports whether an API key is present.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *OpenAIClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("openai API key not configured")
	}
	client := openai.NewClient(option.WithAPIKey(c.apiKey))
	c.client = &client
	logger.Debug("OpenAI client initialized", "provider", "openai")
	return nil
}

// Complete sends a non-streaming chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req braidtypes.CompletionRequest) (string, error) {
	logger.Debug("OpenAI completion starting", "model", c.model.Name)

	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	completion, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		logger.Error("OpenAI request failed", "error", err)
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("OpenAI response received", "content_length", len(content))
	return content, nil
}

// Stream sends a streaming chat completion request and forwards each
// delta as a chunk. Errors surface on the final done chunk.
func (c *OpenAIClient) Stream(ctx context.Context, req braidtypes.CompletionRequest) (<-chan braidtypes.StreamChunk, error) {
	logger.Debug("OpenAI streaming starting", "model", c.model.Name)

	if err := c.initializeClientIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
	responseChan := make(chan braidtypes.StreamChunk, 10)

	go func() {
		defer close(responseChan)
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				responseChan <- braidtypes.StreamChunk{Content: chunk.Choices[0].Delta.Content}
			}
		}

		responseChan <- braidtypes.StreamChunk{Done: true, Error: stream.Err()}
	}()

	return responseChan, nil
}

func (c *OpenAIClient) buildParams(req braidtypes.CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case braidtypes.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case braidtypes.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			continue
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model.Name),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

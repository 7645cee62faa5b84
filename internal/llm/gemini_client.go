package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

// GeminiClient implements braidtypes.LLMClient for Google's Gemini API.
type GeminiClient struct {
	apiKey string
	model  braidtypes.ModelCard
	client *genai.Client
}

// NewGeminiClient creates a client for the given model card with lazy
// SDK initialization.
func NewGeminiClient(apiKey string, model braidtypes.ModelCard) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

// ProviderName returns "gemini".
func (c *GeminiClient) ProviderName() string {
	return "gemini"
}

// ModelID returns the configured model name.
func (c *GeminiClient) ModelID() string {
	return c.model.Name
}

// IsConfigured reports whether an API key is present.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("google API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	logger.Debug("Gemini client initialized", "provider", "gemini")
	return nil
}

// Complete sends a generate-content request.
func (c *GeminiClient) Complete(ctx context.Context, req braidtypes.CompletionRequest) (string, error) {
	logger.Debug("Gemini completion starting", "model", c.model.Name)

	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	contents := c.convertMessages(req)
	config := c.buildConfig(req)

	result, err := c.client.Models.GenerateContent(ctx, c.model.Name, contents, config)
	if err != nil {
		logger.Error("Gemini request failed", "error", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	content := extractText(result)
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("Gemini response received", "content_length", len(content))
	return content, nil
}

// Stream sends a completion and delivers the result as a content chunk
// followed by a done chunk.
func (c *GeminiClient) Stream(ctx context.Context, req braidtypes.CompletionRequest) (<-chan braidtypes.StreamChunk, error) {
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

// convertMessages maps API messages to Gemini contents. The system
// prompt travels separately via SystemInstruction.
func (c *GeminiClient) convertMessages(req braidtypes.CompletionRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role string
		switch msg.Role {
		case braidtypes.RoleUser:
			role = string(genai.RoleUser)
		case braidtypes.RoleAssistant:
			role = string(genai.RoleModel)
		default:
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}

func (c *GeminiClient) buildConfig(req braidtypes.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return config
}

// extractText concatenates non-thought text parts across candidates.
func extractText(result *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

package llm

import (
	"fmt"

	"braid/internal/config"
	"braid/pkg/braidtypes"
)

// NewClient builds the provider client for a model card, resolving the
// API key from settings. Missing credentials fail here, at construction
// time, so a misconfigured provider never surfaces mid-turn.
func NewClient(settings *config.Settings, model braidtypes.ModelCard) (braidtypes.LLMClient, error) {
	apiKey, err := settings.APIKey(model.Provider)
	if err != nil {
		return nil, fmt.Errorf("cannot construct %s client: %w", model.Provider, err)
	}

	switch model.Provider {
	case "anthropic":
		return NewAnthropicClient(apiKey, model), nil
	case "openai":
		return NewOpenAIClient(apiKey, model), nil
	case "gemini":
		return NewGeminiClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", model.Provider)
	}
}

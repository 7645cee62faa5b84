// Package braidtypes defines model catalog types for braid.
package braidtypes

// ModelCard describes one model in the embedded catalog. The context
// window drives the budget manager; max output tokens caps generation.
type ModelCard struct {
	// Name is the provider's model identifier (e.g. "claude-sonnet-4-5-20250514").
	Name string `yaml:"name" json:"name"`

	// DisplayName is the human-readable name shown in status output.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// Provider is the API provider name ("anthropic", "openai", "gemini").
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`

	// ContextWindow is the maximum number of tokens the model can
	// process per request, prompt plus expected output.
	ContextWindow int `yaml:"context_window" json:"context_window"`

	// MaxOutputTokens is the largest completion the model will produce.
	MaxOutputTokens int `yaml:"max_output_tokens" json:"max_output_tokens"`

	// Deprecated marks models that should not be selected for new work.
	Deprecated bool `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
}

// ProviderCatalog is one provider's model list as loaded from YAML.
type ProviderCatalog struct {
	Provider string      `yaml:"provider" json:"provider"`
	Models   []ModelCard `yaml:"models" json:"models"`
}

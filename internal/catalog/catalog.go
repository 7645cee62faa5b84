// Package catalog loads the embedded per-provider model catalogs and
// resolves model names to their cards. The catalogs carry the context
// window and output limits the budget manager needs when a model is
// selected.
package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"braid/internal/data/embedded"
	"braid/pkg/braidtypes"
)

// Catalog holds all known models across providers.
type Catalog struct {
	models []braidtypes.ModelCard
}

// Load parses every embedded provider catalog and validates that model
// names are unique across providers.
func Load() (*Catalog, error) {
	var all []braidtypes.ModelCard

	for _, data := range [][]byte{
		embedded.AnthropicCatalogData,
		embedded.OpenaiCatalogData,
		embedded.GeminiCatalogData,
	} {
		var pc braidtypes.ProviderCatalog
		if err := yaml.Unmarshal(data, &pc); err != nil {
			return nil, fmt.Errorf("failed to parse model catalog: %w", err)
		}
		all = append(all, pc.Models...)
	}

	if err := validateUniqueNames(all); err != nil {
		return nil, fmt.Errorf("model catalog validation failed: %w", err)
	}

	return &Catalog{models: all}, nil
}

// Models returns all model cards.
func (c *Catalog) Models() []braidtypes.ModelCard {
	out := make([]braidtypes.ModelCard, len(c.models))
	copy(out, c.models)
	return out
}

// ModelsByProvider returns the cards for one provider.
func (c *Catalog) ModelsByProvider(provider string) ([]braidtypes.ModelCard, error) {
	var filtered []braidtypes.ModelCard
	providerLower := strings.ToLower(provider)
	for _, model := range c.models {
		if strings.ToLower(model.Provider) == providerLower {
			filtered = append(filtered, model)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return filtered, nil
}

// Lookup resolves a model name (case-insensitive) to its card.
func (c *Catalog) Lookup(name string) (braidtypes.ModelCard, error) {
	nameLower := strings.ToLower(name)
	for _, model := range c.models {
		if strings.ToLower(model.Name) == nameLower {
			return model, nil
		}
	}
	return braidtypes.ModelCard{}, fmt.Errorf("unknown model: %s", name)
}

// Search returns models whose name or display name contains the query.
func (c *Catalog) Search(query string) []braidtypes.ModelCard {
	var matches []braidtypes.ModelCard
	queryLower := strings.ToLower(query)
	for _, model := range c.models {
		if strings.Contains(strings.ToLower(model.Name), queryLower) ||
			strings.Contains(strings.ToLower(model.DisplayName), queryLower) {
			matches = append(matches, model)
		}
	}
	return matches
}

func validateUniqueNames(models []braidtypes.ModelCard) error {
	seen := make(map[string]string)
	for _, model := range models {
		key := strings.ToLower(model.Name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("duplicate model name %q (providers %s and %s)", model.Name, prev, model.Provider)
		}
		seen[key] = model.Provider
	}
	return nil
}

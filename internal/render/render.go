// Package render formats assistant output for the terminal using
// glamour markdown rendering with automatic light/dark detection.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"braid/internal/logger"
)

// Renderer renders markdown to ANSI terminal output.
type Renderer struct {
	renderer *glamour.TermRenderer
	plain    bool
}

// NewRenderer creates a markdown renderer with auto-style detection and
// a word wrap of 80 columns. When the terminal does not support color
// the renderer falls back to plain passthrough.
func NewRenderer() (*Renderer, error) {
	if termenv.ColorProfile() == termenv.Ascii {
		logger.Debug("No color support detected, using plain rendering")
		return &Renderer{plain: true}, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &Renderer{renderer: renderer}, nil
}

// Render renders markdown content. Empty input is returned unchanged.
func (r *Renderer) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return markdown, nil
	}
	if r.plain || r.renderer == nil {
		return markdown, nil
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

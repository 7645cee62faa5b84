package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestRenderEmptyPassthrough(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render("   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", out)
}

func TestRenderPlainPassthrough(t *testing.T) {
	r := &Renderer{plain: true}

	out, err := r.Render("# Heading\n\nbody text")
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nbody text", out)
}

func TestRenderMarkdown(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render("**bold** text")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "bold")
}

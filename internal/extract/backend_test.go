package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "watson"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestNewOllamaNeedsNoKey(t *testing.T) {
	b, err := New(context.Background(), Config{Provider: "ollama", OllamaBaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Contains(t, b.Name(), "ollama")
	assert.Zero(t, b.CostPerCall())
}

func TestNewRequiresAPIKey(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic", "gemini"} {
		_, err := New(context.Background(), Config{Provider: provider})
		assert.Error(t, err, provider)
	}
}

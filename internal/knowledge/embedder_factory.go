package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type EmbedderOptions struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string

	// Zero values disable the corresponding limit.
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
}

// NewEmbedder builds the provider client behind the same rate limit,
// per-call timeout and bounded retries as NewGenerator.
func NewEmbedder(ctx context.Context, opts EmbedderOptions) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}
	if opts.Dimension < 0 {
		return nil, fmt.Errorf("embedding dimension must not be negative, got %d", opts.Dimension)
	}

	var em Embedder
	switch provider {
	case "gemini":
		g, err := NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dimension)
		if err != nil {
			return nil, err
		}
		em = g
	case "openai":
		em = NewOpenAIEmbedder(opts.APIKey, opts.Model, opts.Dimension, opts.BaseURL)
	case "ollama":
		em = NewOllamaEmbedder(opts.Model, opts.Dimension, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
	}

	return NewLimitedEmbedder(em, LimitOptions{
		RequestsPerMinute: opts.RequestsPerMinute,
		Timeout:           opts.Timeout,
		MaxRetries:        opts.MaxRetries,
	}), nil
}

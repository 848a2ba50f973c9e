package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type GeneratorOptions struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Zero values disable the corresponding limit.
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
}

// NewGenerator builds the provider client and wraps it with rate limiting,
// a per-call timeout and bounded retries.
func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}

	var gen Generator
	switch provider {
	case "gemini":
		g, err := NewGeminiGenerator(ctx, opts.APIKey, opts.Model)
		if err != nil {
			return nil, err
		}
		gen = g
	case "openai":
		gen = NewOpenAIGenerator(opts.APIKey, opts.Model, opts.BaseURL)
	case "ollama":
		gen = NewOllamaGenerator(opts.Model, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", opts.Provider)
	}

	return NewLimitedGenerator(gen, LimitOptions{
		RequestsPerMinute: opts.RequestsPerMinute,
		Timeout:           opts.Timeout,
		MaxRetries:        opts.MaxRetries,
	}), nil
}

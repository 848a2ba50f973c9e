package pipeline

import (
	"context"
	"fmt"
	"time"

	"repowiki/internal/config"
	"repowiki/internal/knowledge"
)

// Providers are the external collaborators of a snapshot. A nil member
// disables the steps that need it.
type Providers struct {
	// Generator writes the wiki structure, pages and chat answers.
	Generator knowledge.Generator
	// Summarizer writes evidence unit summaries; nil leaves them empty.
	Summarizer knowledge.Generator
	Embedder   knowledge.Embedder
}

// NewProviders builds the generation and embedding clients named by cfg.
func NewProviders(ctx context.Context, cfg *config.Config) (Providers, error) {
	base := knowledge.GeneratorOptions{
		Provider:          cfg.AI.Provider,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		BaseURL:           cfg.AI.BaseURL,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Timeout:           time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Pipeline.MaxRetries,
	}
	gen, err := knowledge.NewGenerator(ctx, base)
	if err != nil {
		return Providers{}, fmt.Errorf("failed to create generator: %w", err)
	}

	summarizer := gen
	if cfg.AI.SummaryModel != "" && cfg.AI.SummaryModel != cfg.AI.Model {
		opts := base
		opts.Model = cfg.AI.SummaryModel
		if summarizer, err = knowledge.NewGenerator(ctx, opts); err != nil {
			return Providers{}, fmt.Errorf("failed to create summarizer: %w", err)
		}
	}

	em, err := knowledge.NewEmbedder(ctx, knowledge.EmbedderOptions{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BaseURL:   cfg.Embedding.BaseURL,

		Timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Pipeline.MaxRetries,
	})
	if err != nil {
		return Providers{}, fmt.Errorf("failed to create embedder: %w", err)
	}
	return Providers{Generator: gen, Summarizer: summarizer, Embedder: em}, nil
}

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

const (
	defaultGeminiEmbedModel = "gemini-embedding-001"
	geminiEmbedBatchSize    = 50
	geminiEmbedBatchDelay   = 700 * time.Millisecond
)

// GeminiEmbedder embeds texts through the Gemini API in batches. Retries
// belong to the LimitedEmbedder that NewEmbedder wraps it in; errors the
// API will repeat are marked permanent.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiEmbedModel
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dim}, nil
}

func (g *GeminiEmbedder) Dimension() int {
	return g.dimension
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatchSize {
		if start > 0 && !waitOrCancel(ctx, geminiEmbedBatchDelay) {
			return nil, ctx.Err()
		}
		end := min(start+geminiEmbedBatchSize, len(texts))
		vecs, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *GeminiEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var cfg *genai.EmbedContentConfig
	if g.dimension > 0 {
		dim := int32(g.dimension)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	contents := make([]*genai.Content, len(batch))
	for i, text := range batch {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	res, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		if retryableGeminiError(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	if res == nil || len(res.Embeddings) != len(batch) {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d, expected %d", got, len(batch)))
	}
	vecs := make([][]float32, len(batch))
	for i, emb := range res.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}

// retryableGeminiError reports quota and server failures. Errors that are
// not API responses, such as dropped connections, are retried too.
func retryableGeminiError(err error) bool {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return true
}

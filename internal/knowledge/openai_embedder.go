package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIEmbedModel = "text-embedding-3-small"
	openAIEmbedBatchSize    = 64
)

// OpenAIEmbedder implements Embedder with the OpenAI embeddings API. Any
// OpenAI-compatible endpoint works through baseURL.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(apiKey, model string, dim int, baseURL string) *OpenAIEmbedder {
	if model == "" {
		model = defaultOpenAIEmbedModel
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(openAIOptions(apiKey, baseURL)...),
		model:     model,
		dimension: dim,
	}
}

func openAIOptions(apiKey, baseURL string) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if u := strings.TrimSpace(baseURL); u != "" {
		opts = append(opts, option.WithBaseURL(u))
	}
	return opts
}

func (o *OpenAIEmbedder) Dimension() int {
	return o.dimension
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += openAIEmbedBatchSize {
		end := min(i+openAIEmbedBatchSize, len(texts))
		vecs, err := o.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		results = append(results, vecs...)
	}
	return results, nil
}

// embedBatch marks errors that a retry cannot fix as permanent.
func (o *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dimension > 0 {
		params.Dimensions = openai.Int(int64(o.dimension))
	}
	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		if isRetryableOpenAIError(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	if len(resp.Data) != len(batch) {
		return nil, backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(batch)))
	}

	vecs := make([][]float32, len(batch))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(batch) {
			continue
		}
		vecs[item.Index] = toFloat32(item.Embedding)
	}
	for i := range vecs {
		if len(vecs[i]) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("embedding missing at index %d", i))
		}
	}
	return vecs, nil
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

func waitOrCancel(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaEmbedBatchSize   = 64
	ollamaEmbedDelay       = 200 * time.Millisecond
	defaultOllamaURL       = "http://127.0.0.1:11434"
	defaultOllamaEmbedding = "nomic-embed-text"
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	model     string
	dimension int
	endpoint  string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder(model string, dim int, baseURL string) *OllamaEmbedder {
	if model == "" {
		model = defaultOllamaEmbedding
	}

	return &OllamaEmbedder{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		model:     model,
		dimension: dim,
		endpoint:  ollamaEndpoint(baseURL, "/api/embed"),
	}
}

func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += ollamaEmbedBatchSize {
		if i > 0 && !waitOrCancel(ctx, ollamaEmbedDelay) {
			return nil, ctx.Err()
		}
		end := i + ollamaEmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		vecs, err := o.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	if o.dimension <= 0 && len(out) > 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

func (o *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model: o.model,
		Input: batch,
	}
	var parsed ollamaEmbedResponse
	if err := postJSON(ctx, o.client, o.endpoint, reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	if len(parsed.Embeddings) != len(batch) {
		return nil, fmt.Errorf("ollama embedding count mismatch: got %d, expected %d", len(parsed.Embeddings), len(batch))
	}
	return parsed.Embeddings, nil
}

func ollamaEndpoint(baseURL, path string) string {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultOllamaURL
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, path) {
		url += path
	}
	return url
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultOllamaModel = "llama3.1"

// OllamaGenerator calls a local Ollama server's /api/chat endpoint.
type OllamaGenerator struct {
	client   *http.Client
	model    string
	endpoint string
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

func NewOllamaGenerator(model, baseURL string) *OllamaGenerator {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaGenerator{
		client:   &http.Client{Timeout: 5 * time.Minute},
		model:    model,
		endpoint: ollamaEndpoint(baseURL, "/api/chat"),
	}
}

func (o *OllamaGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := ollamaChatRequest{Model: o.model}
	if system != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, ollamaMessage{Role: "user", Content: prompt})

	var resp ollamaChatResponse
	if err := postJSON(ctx, o.client, o.endpoint, req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}
	return resp.Message.Content, nil
}

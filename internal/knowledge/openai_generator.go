package knowledge

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator implements Generator with chat completions.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(openAIOptions(apiKey, baseURL)...),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o"

type openaiBackend struct {
	client openai.Client
	model  openai.ChatModel
}

func newOpenAIBackend(apiKey, model string) *openaiBackend {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openaiBackend{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModel(model),
	}
}

func (b *openaiBackend) Name() string {
	return "openai"
}

func (b *openaiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai reply contained no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

package insights

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codebuildervaibhav/meeting-insights/internal/provider"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter uses the chat completions endpoint
type OpenAICompleter struct {
	client chatClient
	model  string
	hasKey bool
}

// NewOpenAICompleter creates a chat completion backend
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
	}
}

// Complete returns the content of the first choice, or "" when there is none.
// The JSON flag is not forwarded because not every chat model accepts a response format.
func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	const op = "openai.complete"

	if !c.hasKey {
		return "", types.E(types.KindMissingCredential, op, errors.New("openai api key is not configured"))
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", provider.Classify(op, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

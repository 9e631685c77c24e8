package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/codebuildervaibhav/meeting-insights/internal/provider"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCompleter uses the Gemini API
type GeminiCompleter struct {
	models contentGenerator
	model  string
}

// NewGeminiCompleter creates a Gemini backend. With an empty apiKey every call
// fails with a configuration error.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	g := &GeminiCompleter{model: model}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.models = client.Models
	return g, nil
}

// Complete sends the prompt and concatenates the text parts of the first candidate
func (g *GeminiCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	const op = "gemini.complete"

	if g.models == nil {
		return "", types.E(types.KindMissingCredential, op, errors.New("gemini api key is not configured"))
	}

	temperature := p.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   int32(p.MaxTokens),
	}
	if p.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	result, err := g.models.GenerateContent(ctx, g.model, genai.Text(p.User), cfg)
	if err != nil {
		return "", provider.Classify(op, err)
	}
	return candidateText(result), nil
}

func candidateText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

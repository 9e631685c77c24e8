package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

const summarySystemPrompt = `You are an expert meeting analyst. Analyze the following meeting transcript and provide:
1. A concise main summary (2-3 sentences)
2. 5 key bullet points of the most important topics discussed
3. 5 main topics/themes that were covered
4. 5 actionable items or next steps mentioned

Format your response as JSON with these exact keys:
{
  "mainSummary": "string",
  "bulletPoints": ["string", "string", ...],
  "keyTopics": ["string", "string", ...],
  "actionItems": ["string", "string", ...]
}

Keep responses professional and business-focused.`

// Summarizer produces a structured summary from a transcript
type Summarizer struct {
	completer Completer
	logger    *slog.Logger
}

// NewSummarizer creates a summarizer over the given backend
func NewSummarizer(completer Completer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{completer: completer, logger: logger}
}

// Summarize makes one completion call and parses the reply.
// An unparseable reply is a KindMalformedResponse error and is not retried here.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (*types.SummaryContent, error) {
	reply, err := s.completer.Complete(ctx, Prompt{
		System:      summarySystemPrompt,
		User:        "Please analyze this meeting transcript: " + transcript,
		Temperature: 0.3,
		MaxTokens:   1000,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	summary, err := ParseSummary(reply)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to parse AI response", "reply_bytes", len(reply), "error", err)
		return nil, err
	}
	return summary, nil
}

// ParseSummary decodes a model reply, tolerating a surrounding markdown code fence
func ParseSummary(reply string) (*types.SummaryContent, error) {
	const op = "parse summary"

	text := stripFence(strings.TrimSpace(reply))
	if text == "" {
		return nil, types.E(types.KindMalformedResponse, op, errors.New("empty reply"))
	}

	var summary types.SummaryContent
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return nil, types.E(types.KindMalformedResponse, op, fmt.Errorf("decode: %w", err))
	}
	if strings.TrimSpace(summary.MainSummary) == "" {
		return nil, types.E(types.KindMalformedResponse, op, errors.New("mainSummary is missing"))
	}

	summary.BulletPoints = nonNil(summary.BulletPoints)
	summary.KeyTopics = nonNil(summary.KeyTopics)
	summary.ActionItems = nonNil(summary.ActionItems)
	return &summary, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// drop the language tag on the opening line
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// Package insights turns transcripts into structured summaries and answers
// follow-up questions about a meeting.
package insights

import "context"

// Prompt is a single-turn completion request
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	// JSON asks the backend for a JSON-only reply where it supports one
	JSON bool
}

// Completer is a large-language-model backend
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

// Complete calls f(ctx, p)
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

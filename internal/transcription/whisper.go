package transcription

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codebuildervaibhav/meeting-insights/internal/provider"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Transcriber turns recorded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (*types.Transcript, error)
}

type audioClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperTranscriber calls the hosted whisper model
type WhisperTranscriber struct {
	client audioClient
	model  string
	hasKey bool
	logger *slog.Logger
}

// NewWhisperTranscriber creates a transcriber. An empty apiKey is accepted here
// and reported as a configuration error on the first call.
func NewWhisperTranscriber(apiKey, baseURL, model string, logger *slog.Logger) *WhisperTranscriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
		logger: logger,
	}
}

// Transcribe sends the audio once with word-level timestamps. It does not retry.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (*types.Transcript, error) {
	const op = "transcribe"

	if !wt.hasKey {
		return nil, types.E(types.KindMissingCredential, op, errors.New("openai api key is not configured"))
	}

	wt.logger.DebugContext(ctx, "transcribing audio", "filename", filename, "mime_type", mimeType, "bytes", len(audio))

	resp, err := wt.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    wt.model,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, provider.Classify(op, err)
	}

	words := make([]types.Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, types.Word{Word: w.Word, Start: w.Start, End: w.End})
	}

	result := &types.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
		Words:    words,
	}

	wt.logger.InfoContext(ctx, "transcription completed", "filename", filename, "words", len(words), "duration_seconds", resp.Duration)
	return result, nil
}

package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// ApologyAnswer is shown in place of an answer when the model call fails
const ApologyAnswer = "Sorry, I encountered an error while processing your question. Please try again."

const qaSystemPrompt = `You are an expert meeting analyst assistant. You have access to a complete meeting transcript and summary. 

Your role is to answer specific questions about the meeting content in a helpful, professional manner. 

Guidelines:
- Base your answers on the actual transcript content
- Be specific and provide concrete details when possible
- If the information isn't in the transcript, say so clearly
- Keep responses concise but informative
- Use a professional, business-friendly tone
- If asked about timing, speakers, or specific details, reference the transcript accurately

Available information:
- Full meeting transcript
- Meeting summary with key points, topics, and action items`

// MessageStore appends to a job's chat thread
type MessageStore interface {
	AppendChatMessage(ctx context.Context, msg *types.ChatMessage) error
}

// Answer is the outcome of a question
type Answer struct {
	Text     string             `json:"answer"`
	Cached   bool               `json:"cached"`
	Failed   bool               `json:"failed"`
	Question *types.ChatMessage `json:"question,omitempty"`
	Reply    *types.ChatMessage `json:"reply,omitempty"`
}

// QAService answers questions grounded in one meeting
type QAService struct {
	completer Completer
	cache     *AnswerCache
	messages  MessageStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewQAService creates a Q&A service
func NewQAService(completer Completer, cache *AnswerCache, messages MessageStore, logger *slog.Logger) *QAService {
	if cache == nil {
		cache = NewAnswerCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QAService{
		completer: completer,
		cache:     cache,
		messages:  messages,
		logger:    logger,
		now:       time.Now,
	}
}

// Ask answers question about job. A failed model call yields the apology text
// with Failed set and no error; only the user's turn is stored in that case.
func (s *QAService) Ask(ctx context.Context, job *types.AudioJob, summary *types.SummaryContent, question string) (Answer, error) {
	const op = "ask"

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, types.E(types.KindValidation, op, errors.New("question is required"))
	}
	if job.Status != types.StatusCompleted || job.Transcript == "" {
		return Answer{}, types.E(types.KindConflict, op, errors.New("meeting has no completed transcript"))
	}

	ctx, span := otel.Tracer("insights").Start(ctx, "qa.ask")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID))

	asked := s.now()
	userMsg := &types.ChatMessage{
		ID:         uuid.New().String(),
		AudioJobID: job.ID,
		Role:       types.RoleUser,
		Content:    question,
		Timestamp:  asked,
	}
	if err := s.messages.AppendChatMessage(ctx, userMsg); err != nil {
		return Answer{}, types.E(types.KindPersistence, op, err)
	}

	key := CacheKey(question, job.Transcript)
	answer := Answer{Question: userMsg}

	if text, ok := s.cache.Get(key); ok {
		answer.Text = text
		answer.Cached = true
	} else {
		text, err := s.complete(ctx, job.Transcript, summary, question)
		if err != nil {
			s.logger.WarnContext(ctx, "question failed", "job_id", job.ID, "error", err)
			span.RecordError(err)
			answer.Text = ApologyAnswer
			answer.Failed = true
			return answer, nil
		}
		s.cache.Put(key, text)
		answer.Text = text
	}

	replied := s.now()
	if !replied.After(asked) {
		replied = asked.Add(time.Millisecond)
	}
	aiMsg := &types.ChatMessage{
		ID:         uuid.New().String(),
		AudioJobID: job.ID,
		Role:       types.RoleAI,
		Content:    answer.Text,
		Timestamp:  replied,
	}
	if err := s.messages.AppendChatMessage(ctx, aiMsg); err != nil {
		return Answer{}, types.E(types.KindPersistence, op, err)
	}
	answer.Reply = aiMsg

	return answer, nil
}

func (s *QAService) complete(ctx context.Context, transcript string, summary *types.SummaryContent, question string) (string, error) {
	summaryJSON := []byte("null")
	if summary != nil {
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode summary: %w", err)
		}
		summaryJSON = b
	}

	user := fmt.Sprintf(`Meeting Transcript: %s

Meeting Summary: %s

User Question: %s

Please answer the user's question based on the meeting content above.`, transcript, summaryJSON, question)

	text, err := s.completer.Complete(ctx, Prompt{
		System:      qaSystemPrompt,
		User:        user,
		Temperature: 0.3,
		MaxTokens:   800,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", types.E(types.KindMalformedResponse, "ask", errors.New("empty answer"))
	}
	return text, nil
}

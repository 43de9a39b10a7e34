// Package usecase holds the conversation pipeline: safety gate, history
// retrieval, generation, persistence.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"safety-chatbot/internal/domain"
)

const defaultHistoryTurns = 5

// SafetyClassifier scores a message across the fixed harm categories.
type SafetyClassifier interface {
	Analyze(ctx context.Context, text string) (domain.SafetyVerdict, error)
}

// ChatCompleter requests a completion from the generation service.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// HistoryStore defines the persistence operations consumed by the pipeline.
type HistoryStore interface {
	History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error)
	SaveTurn(ctx context.Context, userID, userMessage, botResponse string) (domain.ChatTurn, error)
	Clear(ctx context.Context, userID string) error
}

// SessionService sequences one user message through the pipeline and
// serves the history view/clear operations.
type SessionService struct {
	safety       SafetyClassifier
	llm          ChatCompleter
	store        HistoryStore
	logger       *slog.Logger
	historyTurns int
	failOpen     bool
}

// Reply is the outcome of processing one message. When the verdict is
// unsafe no generation happened and Response is empty.
type Reply struct {
	Verdict  domain.SafetyVerdict
	Response string
}

type Option func(*SessionService)

// WithHistoryTurns bounds how many recent turns feed the prompt context.
func WithHistoryTurns(n int) Option {
	return func(s *SessionService) {
		if n > 0 {
			s.historyTurns = n
		}
	}
}

// WithFailOpen makes a classifier outage pass messages through unscored
// instead of refusing them. Off by default: the gate fails closed.
func WithFailOpen(failOpen bool) Option {
	return func(s *SessionService) {
		s.failOpen = failOpen
	}
}

func NewSessionService(safety SafetyClassifier, llm ChatCompleter, store HistoryStore, logger *slog.Logger, opts ...Option) (*SessionService, error) {
	if safety == nil {
		return nil, errors.New("usecase: safety classifier must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: chat completer must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionService{
		safety:       safety,
		llm:          llm,
		store:        store,
		logger:       logger,
		historyTurns: defaultHistoryTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProcessMessage runs the pipeline for one user message: classify, load
// recent history, generate, persist. A turn is persisted iff the verdict
// was safe and generation succeeded. An unsafe message is a normal
// outcome, not an error; the caller checks Reply.Verdict.Safe.
func (s *SessionService) ProcessMessage(ctx context.Context, userID, message string) (Reply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	verdict, err := s.safety.Analyze(ctx, message)
	if err != nil {
		if !s.failOpen {
			return Reply{}, newError(ErrorServiceUnavailable, "classification_failed", err)
		}
		s.logger.Warn("classifier unavailable, continuing unscored", "user_id", userID, "error", err)
		verdict = domain.SafetyVerdict{Severities: map[domain.Category]int{}, Safe: true}
	}
	if !verdict.Safe {
		s.logger.Info("message refused by safety gate", "user_id", userID)
		return Reply{Verdict: verdict}, nil
	}

	turns, err := s.store.History(ctx, userID, s.historyTurns)
	if err != nil {
		return Reply{}, newError(ErrorStore, "history_read_failed", err)
	}

	response, err := s.llm.Chat(ctx, promptMessages(message, FormatTranscript(turns)))
	if err != nil {
		return Reply{}, newError(ErrorGeneration, "completion_failed", err)
	}

	if _, err := s.store.SaveTurn(ctx, userID, message, response); err != nil {
		return Reply{}, newError(ErrorStore, "turn_write_failed", err)
	}

	return Reply{Verdict: verdict, Response: response}, nil
}

// History returns the user's most recent turns, newest first.
func (s *SessionService) History(ctx context.Context, userID string) ([]domain.ChatTurn, error) {
	turns, err := s.store.History(ctx, userID, s.historyTurns)
	if err != nil {
		return nil, newError(ErrorStore, "history_read_failed", err)
	}
	return turns, nil
}

// ClearHistory deletes every turn owned by userID.
func (s *SessionService) ClearHistory(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return newError(ErrorStore, "history_clear_failed", err)
	}
	return nil
}

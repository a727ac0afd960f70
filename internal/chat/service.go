package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/memory"
	"github.com/chatloom/chatloom/internal/observability"
	"github.com/chatloom/chatloom/internal/structured"
)

// ConversationStore is the persistence surface the service depends on.
type ConversationStore interface {
	SaveInteraction(ctx context.Context, userID, sessionID, question string, answer memory.Message) (memory.Conversation, error)
	SetTitle(ctx context.Context, userID, sessionID, title string) error
	ListSessions(ctx context.Context, userID string) ([]memory.Conversation, error)
	GetSession(ctx context.Context, userID, sessionID string) (*memory.Conversation, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	DeleteAllSessions(ctx context.Context, userID string) error
	DeleteEverything(ctx context.Context) error
	ListAllSessions(ctx context.Context) ([]memory.Conversation, error)
}

// ContextCollector gathers tool context for a prompt. An empty string means
// no augmentation.
type ContextCollector interface {
	Collect(ctx context.Context, prompt, sessionID string) string
}

// Result is the outcome of one chat turn.
type Result struct {
	UserID      string
	SessionID   string
	Answer      string
	ContentType structured.ContentType
	Components  []structured.Component
	Model       string
}

// Service orchestrates history recall, tool-context collection, model
// invocation and persistence for chat requests.
type Service struct {
	cfg       *config.Config
	registry  *llm.Registry
	store     ConversationStore
	collector ContextCollector
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewService(cfg *config.Config, registry *llm.Registry, store ConversationStore, collector ContextCollector, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		registry:  registry,
		store:     store,
		collector: collector,
		logger:    logger,
		metrics:   metrics,
	}
}

// Chat answers one user message. Missing identifiers are generated so every
// response names the user and session it belongs to.
func (s *Service) Chat(ctx context.Context, userID, sessionID, message string) (Result, error) {
	started := time.Now()
	if strings.TrimSpace(message) == "" {
		return Result{}, errors.New("message is required")
	}
	if userID == "" {
		userID = uuid.NewString()
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	historySnippets := s.recallHistory(ctx, userID, sessionID, message)

	toolContext := ""
	if s.collector != nil {
		toolContext = s.collector.Collect(ctx, message, sessionID)
	}

	systemMessage := composeSystemMessage(s.cfg.Chat.SystemPrompt, historySnippets, toolContext)
	response, err := s.generate(ctx, systemMessage, message)
	if err != nil {
		s.metrics.RecordChatRequest("error", time.Since(started), approxTokens(message), 0)
		return Result{}, err
	}

	answer := strings.TrimSpace(response.Message.Content)
	analysis := structured.Classify(answer)
	components := structured.BuildComponents(analysis)
	for _, component := range components {
		s.metrics.RecordComponent(component.Type)
	}

	meta, err := s.store.SaveInteraction(ctx, userID, sessionID, message, memory.Message{
		Role:        "assistant",
		Content:     analysis.Text,
		ContentType: string(analysis.Type),
		Components:  components,
	})
	if err != nil {
		return Result{}, fmt.Errorf("persist interaction: %w", err)
	}

	if meta.Title == "" && meta.MessageCount == 2 {
		title := truncateTitle(message, s.cfg.Chat.TitleMaxChars)
		if err := s.store.SetTitle(ctx, userID, sessionID, title); err != nil {
			s.logger.Warn("failed to set session title",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	s.metrics.RecordChatRequest("ok", time.Since(started), approxTokens(message), approxTokens(answer))
	return Result{
		UserID:      userID,
		SessionID:   sessionID,
		Answer:      analysis.Text,
		ContentType: analysis.Type,
		Components:  components,
		Model:       response.Model,
	}, nil
}

// recallHistory loads the session and ranks past exchanges against the
// prompt. A missing session or a read failure yields no context; the chat
// proceeds without it.
func (s *Service) recallHistory(ctx context.Context, userID, sessionID, message string) string {
	session, err := s.store.GetSession(ctx, userID, sessionID)
	if errors.Is(err, memory.ErrSessionNotFound) {
		return ""
	}
	if err != nil {
		s.logger.Warn("history recall unavailable",
			zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}
	return memory.Recall(session.Messages, message, s.cfg.Memory.RecallMessages)
}

// generate calls the default model, then the configured fallbacks in order.
func (s *Service) generate(ctx context.Context, systemMessage, message string) (llm.ChatResponse, error) {
	candidates := append([]string{s.cfg.Strategy.DefaultModel}, s.cfg.Strategy.Fallbacks...)

	var lastErr error
	for _, modelID := range candidates {
		provider, route, err := s.registry.Resolve(modelID)
		if err != nil {
			lastErr = err
			continue
		}

		req := llm.ChatRequest{
			Model: route.Model,
			Messages: []llm.ChatMessage{
				{Role: llm.RoleSystem, Content: systemMessage},
				{Role: llm.RoleUser, Content: message},
			},
			MaxTokens:   s.cfg.Chat.MaxTokens,
			Temperature: s.cfg.Chat.Temperature,
		}
		if route.MaxTokens > 0 {
			req.MaxTokens = route.MaxTokens
		}
		if route.Temperature > 0 {
			req.Temperature = route.Temperature
		}

		response, err := provider.Chat(ctx, req)
		if err != nil {
			s.logger.Warn("model call failed, trying next candidate",
				zap.String("model", route.Name), zap.Error(err))
			s.metrics.RecordModelFailure(route.Name)
			lastErr = err
			continue
		}
		s.metrics.RecordModelUsage(route.Name)
		if response.Model == "" {
			response.Model = route.Name
		}
		return response, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no chat models configured")
	}
	return llm.ChatResponse{}, fmt.Errorf("all chat models failed: %w", lastErr)
}

// ListSessions returns session metadata for a user.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]memory.Conversation, error) {
	return s.store.ListSessions(ctx, userID)
}

// GetSession returns one session with messages.
func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*memory.Conversation, error) {
	return s.store.GetSession(ctx, userID, sessionID)
}

// DeleteSession removes one session.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.store.DeleteSession(ctx, userID, sessionID)
}

// DeleteAllSessions removes every session for a user.
func (s *Service) DeleteAllSessions(ctx context.Context, userID string) error {
	return s.store.DeleteAllSessions(ctx, userID)
}

// DeleteEverything removes all sessions across all users.
func (s *Service) DeleteEverything(ctx context.Context) error {
	s.logger.Info("deleting all sessions across all users")
	return s.store.DeleteEverything(ctx)
}

// Info reports the active chat configuration.
func (s *Service) Info() map[string]interface{} {
	return map[string]interface{}{
		"model":       s.cfg.Strategy.DefaultModel,
		"temperature": s.cfg.Chat.Temperature,
		"max_tokens":  s.cfg.Chat.MaxTokens,
	}
}

func truncateTitle(message string, max int) string {
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max])
}

// approxTokens estimates token usage as whitespace-separated words.
func approxTokens(text string) int {
	return len(strings.Fields(text))
}

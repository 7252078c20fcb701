package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/constant"
	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/events"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/rag"
	"ai-chatbot-be/pkg/rag/prompt"
	"ai-chatbot-be/pkg/toolctx"
	"ai-chatbot-be/pkg/tools"
)

const eventPublishTimeout = 5 * time.Second

// IChatService is the conversational entry point: one call per user turn.
type IChatService interface {
	ProcessMessage(ctx context.Context, request *dto.ChatRequest, identity *toolctx.Context) *dto.ChatResponse
	GetSessionHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error)
	ClearSession(ctx context.Context, sessionId string) error
}

// StreamSink receives incremental answer text keyed by session. Nil is valid
// and disables streaming.
type StreamSink interface {
	PublishDelta(sessionId, delta string)
}

// EventPublisher forwards domain events to the bus. Nil is valid; publishing
// is always best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type chatService struct {
	memory      contract.ChatMemoryRepository
	ragEngine   *rag.Engine
	dispatcher  *tools.ManualDispatcher
	registry    *tools.Registry
	llmProvider llm.LLMProvider
	log         logger.ILogger
	cfg         config.ChatConfig
	sink        StreamSink
	publisher   EventPublisher
}

func NewChatService(
	memory contract.ChatMemoryRepository,
	ragEngine *rag.Engine,
	dispatcher *tools.ManualDispatcher,
	registry *tools.Registry,
	llmProvider llm.LLMProvider,
	log logger.ILogger,
	cfg config.ChatConfig,
	sink StreamSink,
	publisher EventPublisher,
) IChatService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 5
	}
	return &chatService{
		memory:      memory,
		ragEngine:   ragEngine,
		dispatcher:  dispatcher,
		registry:    registry,
		llmProvider: llmProvider,
		log:         log,
		cfg:         cfg,
		sink:        sink,
		publisher:   publisher,
	}
}

// ProcessMessage runs one full turn: authorization setup, manual dispatch,
// retrieval, the model loop and best-effort persistence. It never returns an
// error; every failure mode is encoded in the response.
func (s *chatService) ProcessMessage(ctx context.Context, request *dto.ChatRequest, identity *toolctx.Context) (response *dto.ChatResponse) {
	identity = resolveIdentity(request, identity)

	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}
	ctx = toolctx.With(ctx, identity)

	s.log.Info("chat", "processing message", map[string]interface{}{
		"session_id": request.SessionId,
		"subject_id": identity.SubjectId,
		"role":       identity.Role,
	})

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("chat", "panic during turn", map[string]interface{}{
				"session_id": request.SessionId,
				"panic":      fmt.Sprint(rec),
			})
			response = &dto.ChatResponse{
				SessionId:    request.SessionId,
				Answer:       "",
				UsedTools:    []string{},
				Success:      false,
				ErrorMessage: fmt.Sprintf("internal error: %v", rec),
			}
		}
	}()

	var finalAnswer string
	usedTools := []string{}

	if hit := s.tryManualDispatch(ctx, request.Message); hit != nil {
		usedTools = append(usedTools, hit.ToolName)
		finalAnswer = s.rephraseToolResult(ctx, hit.Result, request.Message)
		if s.sink != nil {
			s.sink.PublishDelta(request.SessionId, finalAnswer)
		}
	} else {
		answer, authErr, failure := s.runModelLoop(ctx, request, identity, &usedTools)
		if authErr != nil {
			// Hard authorization failure: abort without persisting the turn.
			return &dto.ChatResponse{
				SessionId:    request.SessionId,
				Answer:       "",
				UsedTools:    usedTools,
				Success:      false,
				ErrorMessage: constant.AuthorizationErrorPrefix + authErr.Error(),
			}
		}
		if failure != nil {
			return failure
		}
		finalAnswer = answer
	}

	s.persistTurn(ctx, request, identity, finalAnswer)
	s.publishTurnCompleted(request.SessionId, identity.SubjectId, usedTools, true)

	return &dto.ChatResponse{
		SessionId: request.SessionId,
		Answer:    finalAnswer,
		UsedTools: usedTools,
		Success:   true,
	}
}

// resolveIdentity merges the token identity with the body fallback. The body
// role only applies when no authenticated role is present.
func resolveIdentity(request *dto.ChatRequest, identity *toolctx.Context) *toolctx.Context {
	if identity == nil {
		identity = &toolctx.Context{}
	}
	if identity.Role == "" && request.Role != "" {
		identity.Role = request.Role
	}
	if len(identity.AllowedProductIds) == 0 && len(request.AllowedProductIds) > 0 {
		identity.AllowedProductIds = request.AllowedProductIds
	}
	return identity
}

func (s *chatService) tryManualDispatch(ctx context.Context, message string) *tools.DispatchResult {
	if s.dispatcher == nil {
		return nil
	}
	hit, err := s.dispatcher.TryDispatch(ctx, message)
	if err != nil || hit == nil {
		return nil
	}
	s.log.Info("chat", "manual dispatch hit", map[string]interface{}{
		"tool": hit.ToolName,
	})
	return hit
}

// rephraseToolResult asks the model to present a raw tool result. The raw
// result is the fallback when the model is unavailable.
func (s *chatService) rephraseToolResult(ctx context.Context, toolResult, userMessage string) string {
	messages := []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: prompt.Rephrase(toolResult)},
		{Role: constant.ChatMessageRoleUser, Content: userMessage},
	}

	answer, err := s.llmProvider.Chat(ctx, messages,
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(500),
	)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			s.log.Warn("chat", "rephrase failed, using raw tool result", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return toolResult
	}
	return answer
}

// runModelLoop drives the retrieval-grounded tool-calling loop. It returns
// the final answer, a hard authorization error, or a complete failure
// response when the model produced nothing usable.
func (s *chatService) runModelLoop(ctx context.Context, request *dto.ChatRequest, identity *toolctx.Context, usedTools *[]string) (string, error, *dto.ChatResponse) {
	docs := s.ragEngine.SemanticSearch(ctx, request.Message)
	ragContext := s.ragEngine.FormatAsContext(docs)

	s.log.Info("chat", "retrieval done", map[string]interface{}{
		"session_id": request.SessionId,
		"documents":  len(docs),
	})

	messages := []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: prompt.BuildSystem(identity, ragContext)},
	}
	messages = append(messages, s.loadHistory(ctx, request.SessionId)...)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: request.Message,
	})

	onUpdate := func(update llm.StreamUpdate) {
		if s.sink != nil && update.Delta != "" {
			s.sink.PublishDelta(request.SessionId, update.Delta)
		}
	}

	var accumulated strings.Builder
	seenTools := make(map[string]bool)

	for iteration := 0; iteration < s.cfg.MaxToolIterations; iteration++ {
		result, err := s.llmProvider.ChatStream(ctx, messages, s.registry.Defs(), onUpdate,
			llm.WithTemperature(0.3),
			llm.WithMaxTokens(2000),
		)
		if err != nil {
			if ctx.Err() != nil {
				// Deadline hit mid-loop: same outcome as the iteration cap.
				s.log.Warn("chat", "turn deadline exceeded", map[string]interface{}{
					"session_id": request.SessionId,
					"iteration":  iteration,
				})
				return truncatedAnswer(accumulated.String()), nil, nil
			}

			s.log.Error("chat", "model call failed", map[string]interface{}{
				"session_id": request.SessionId,
				"iteration":  iteration,
				"error":      err.Error(),
			})
			if accumulated.Len() > 0 {
				return constant.ApologyAnswer, nil, nil
			}
			return "", nil, &dto.ChatResponse{
				SessionId:    request.SessionId,
				Answer:       "",
				UsedTools:    *usedTools,
				Success:      false,
				ErrorMessage: err.Error(),
			}
		}

		if result.Content != "" {
			accumulated.WriteString(result.Content)
		}

		if len(result.ToolCalls) == 0 {
			// Text emitted alongside earlier tool calls is part of the answer.
			return accumulated.String(), nil, nil
		}

		assistantMsg := llm.Message{
			Role:      constant.ChatMessageRoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		}
		messages = append(messages, assistantMsg)

		for _, call := range result.ToolCalls {
			if !seenTools[call.Name] {
				seenTools[call.Name] = true
				*usedTools = append(*usedTools, call.Name)
			}

			out, execErr := s.registry.Execute(ctx, call)
			if execErr != nil {
				s.log.Warn("chat", "authorization failure in tool call", map[string]interface{}{
					"session_id": request.SessionId,
					"tool":       call.Name,
					"error":      execErr.Error(),
				})
				return "", execErr, nil
			}

			messages = append(messages, llm.Message{
				Role:     constant.ChatMessageRoleTool,
				ToolName: call.Name,
				Content:  out,
			})
		}
	}

	s.log.Warn("chat", "tool iteration cap reached", map[string]interface{}{
		"session_id": request.SessionId,
		"cap":        s.cfg.MaxToolIterations,
	})
	return truncatedAnswer(accumulated.String()), nil, nil
}

func truncatedAnswer(accumulated string) string {
	if strings.TrimSpace(accumulated) == "" {
		return constant.TruncationNotice
	}
	return accumulated + "\n\n" + constant.TruncationNotice
}

// loadHistory replays the session's stored conversation, skipping system and
// tool messages so stale grounding never leaks into a new turn.
func (s *chatService) loadHistory(ctx context.Context, sessionId string) []llm.Message {
	stored, err := s.memory.GetHistory(ctx, sessionId)
	if err != nil {
		s.log.Warn("chat", "history load failed, continuing without it", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return nil
	}

	var out []llm.Message
	for _, m := range stored {
		if m.Role == constant.ChatMessageRoleSystem || m.Role == constant.ChatMessageRoleTool {
			continue
		}
		out = append(out, llm.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// persistTurn saves the user message and the final answer. Failures are
// logged and swallowed; the reply already exists and must still be delivered.
func (s *chatService) persistTurn(ctx context.Context, request *dto.ChatRequest, identity *toolctx.Context, finalAnswer string) {
	// Persistence must not be cancelled by a turn deadline that already fired.
	persistCtx := context.WithoutCancel(ctx)

	userMsg := &entity.ChatMessage{
		SessionId: request.SessionId,
		Role:      constant.ChatMessageRoleUser,
		Content:   request.Message,
	}
	if err := s.memory.AppendMessage(persistCtx, request.SessionId, identity.SubjectId, userMsg); err != nil {
		s.log.Error("chat", "failed to persist user message", map[string]interface{}{
			"session_id": request.SessionId,
			"error":      err.Error(),
		})
		return
	}

	assistantMsg := &entity.ChatMessage{
		SessionId: request.SessionId,
		Role:      constant.ChatMessageRoleAssistant,
		Content:   finalAnswer,
	}
	if err := s.memory.AppendMessage(persistCtx, request.SessionId, identity.SubjectId, assistantMsg); err != nil {
		s.log.Error("chat", "failed to persist assistant message", map[string]interface{}{
			"session_id": request.SessionId,
			"error":      err.Error(),
		})
	}
}

func (s *chatService) publishTurnCompleted(sessionId, subjectId string, usedTools []string, success bool) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	event := events.NewChatTurnCompleted(sessionId, subjectId, usedTools, success)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("chat", "event publish failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (s *chatService) GetSessionHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error) {
	s.log.Info("chat", "history requested", map[string]interface{}{
		"session_id": sessionId,
	})
	return s.memory.GetHistory(ctx, sessionId)
}

func (s *chatService) ClearSession(ctx context.Context, sessionId string) error {
	s.log.Info("chat", "clearing session", map[string]interface{}{
		"session_id": sessionId,
	})
	return s.memory.Clear(ctx, sessionId)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/constant"
	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/repository/contract"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/rag"
	"ai-chatbot-be/pkg/toolctx"
	"ai-chatbot-be/pkg/tools"
)

// stubKnowledgeRepo satisfies the repository contract with empty results so
// retrieval degrades to an empty context in every test.
type stubKnowledgeRepo struct{}

func (stubKnowledgeRepo) Create(ctx context.Context, doc *entity.KnowledgeDocument) error { return nil }
func (stubKnowledgeRepo) Update(ctx context.Context, doc *entity.KnowledgeDocument) error { return nil }
func (stubKnowledgeRepo) Delete(ctx context.Context, id int) error                        { return nil }
func (stubKnowledgeRepo) GetById(ctx context.Context, id int) (*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) GetAllActive(ctx context.Context) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) VectorSearch(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) FindPendingEmbedding(ctx context.Context, limit int) ([]*entity.KnowledgeDocument, error) {
	return nil, nil
}
func (stubKnowledgeRepo) ReplaceEmbeddings(ctx context.Context, documentId int, embeddings []*entity.KnowledgeEmbedding) error {
	return nil
}
func (stubKnowledgeRepo) MarkEmbedded(ctx context.Context, documentId int, hasEmbedding bool) error {
	return nil
}

type fakeMemory struct {
	mu        sync.Mutex
	appended  []*entity.ChatMessage
	appendErr error
	history   []*entity.ChatMessage
}

func (f *fakeMemory) AppendMessage(ctx context.Context, sessionId, subjectId string, msg *entity.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeMemory) GetHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeMemory) Clear(ctx context.Context, sessionId string) error { return nil }

// fakeLLM replays scripted ChatStream results in order and records the
// message history it was called with.
type fakeLLM struct {
	streamResults []func(ctx context.Context) (*llm.StreamResult, error)
	streamCalls   int
	lastMessages  []llm.Message

	chatAnswer string
	chatErr    error
	chatCalls  int
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, defs []llm.ToolDef, onUpdate llm.StreamHandler, options ...llm.Option) (*llm.StreamResult, error) {
	f.lastMessages = history
	i := f.streamCalls
	f.streamCalls++
	if i >= len(f.streamResults) {
		return &llm.StreamResult{}, nil
	}
	result, err := f.streamResults[i](ctx)
	if err == nil && onUpdate != nil && result.Content != "" {
		onUpdate(llm.StreamUpdate{Delta: result.Content})
	}
	return result, err
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.chatCalls++
	return f.chatAnswer, f.chatErr
}

type fakeSink struct {
	mu     sync.Mutex
	deltas []string
}

func (f *fakeSink) PublishDelta(sessionId, delta string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, delta)
}

func streamText(content string) func(ctx context.Context) (*llm.StreamResult, error) {
	return func(ctx context.Context) (*llm.StreamResult, error) {
		return &llm.StreamResult{Content: content}, nil
	}
}

func streamToolCall(content string, calls ...llm.ToolCall) func(ctx context.Context) (*llm.StreamResult, error) {
	return func(ctx context.Context) (*llm.StreamResult, error) {
		return &llm.StreamResult{Content: content, ToolCalls: calls}, nil
	}
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)

	err := r.Register(&tools.Tool{
		Name: "echo_tool",
		Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
			return "tool output", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	err = r.Register(&tools.Tool{
		Name: "forbidden_tool",
		Handler: func(ctx context.Context, args tools.Arguments) (string, error) {
			return "", fmt.Errorf("product 42: %w", toolctx.ErrUnauthorized)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

type serviceParts struct {
	memory *fakeMemory
	model  *fakeLLM
	sink   *fakeSink
}

func newTestService(t *testing.T, model *fakeLLM, cfg config.ChatConfig, withDispatcher bool) (IChatService, *serviceParts) {
	t.Helper()

	memory := &fakeMemory{}
	sink := &fakeSink{}
	engine := rag.NewEngine(stubKnowledgeRepo{}, nil, nil, rag.Config{})
	registry := newTestRegistry(t)

	var dispatcher *tools.ManualDispatcher
	if withDispatcher {
		dispatcher = tools.NewManualDispatcher(tools.NewCatalog(stubKnowledgeRepo{}, engine, nil), nil)
	}

	svc := NewChatService(memory, engine, dispatcher, registry, model, nil, cfg, sink, nil)
	return svc, &serviceParts{memory: memory, model: model, sink: sink}
}

func request(message string) *dto.ChatRequest {
	return &dto.ChatRequest{SessionId: "s1", Message: message}
}

func TestProcessMessageManualDispatch(t *testing.T) {
	model := &fakeLLM{chatAnswer: "İade süreniz 14 gündür."}
	svc, parts := newTestService(t, model, config.ChatConfig{}, true)

	res := svc.ProcessMessage(context.Background(), request("iade politikası nedir"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if res.Answer != "İade süreniz 14 gündür." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if len(res.UsedTools) != 1 || res.UsedTools[0] != "get_return_policy" {
		t.Errorf("UsedTools = %v, want [get_return_policy]", res.UsedTools)
	}
	if model.streamCalls != 0 {
		t.Error("model loop ran despite a manual dispatch hit")
	}
	if len(parts.memory.appended) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(parts.memory.appended))
	}
	if parts.memory.appended[0].Role != constant.ChatMessageRoleUser ||
		parts.memory.appended[1].Role != constant.ChatMessageRoleAssistant {
		t.Errorf("persisted roles = %s, %s", parts.memory.appended[0].Role, parts.memory.appended[1].Role)
	}
	if len(parts.sink.deltas) != 1 || parts.sink.deltas[0] != res.Answer {
		t.Errorf("sink deltas = %v", parts.sink.deltas)
	}
}

func TestProcessMessageManualDispatchRephraseFallback(t *testing.T) {
	model := &fakeLLM{chatErr: errors.New("ollama down")}
	svc, _ := newTestService(t, model, config.ChatConfig{}, true)

	res := svc.ProcessMessage(context.Background(), request("iade politikası nedir"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	// Rephrasing failed, so the raw tool output is the answer.
	if !strings.Contains(res.Answer, "İade Politikası") {
		t.Errorf("Answer = %q, want raw policy text", res.Answer)
	}
}

func TestProcessMessagePlainAnswer(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamText("Merhaba, size nasıl yardımcı olabilirim?"),
	}}
	svc, parts := newTestService(t, model, config.ChatConfig{}, false)

	res := svc.ProcessMessage(context.Background(), request("merhaba"), &toolctx.Context{SubjectId: "u1"})

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if res.Answer != "Merhaba, size nasıl yardımcı olabilirim?" {
		t.Errorf("Answer = %q", res.Answer)
	}
	if len(res.UsedTools) != 0 {
		t.Errorf("UsedTools = %v, want none", res.UsedTools)
	}
	if len(parts.memory.appended) != 2 {
		t.Errorf("persisted %d messages, want 2", len(parts.memory.appended))
	}
	if parts.memory.appended[1].Content != res.Answer {
		t.Errorf("persisted assistant content = %q", parts.memory.appended[1].Content)
	}
}

func TestProcessMessageToolLoop(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamToolCall("", llm.ToolCall{Name: "echo_tool"}, llm.ToolCall{Name: "echo_tool"}),
		streamText("Araç sonucuna göre cevap."),
	}}
	svc, parts := newTestService(t, model, config.ChatConfig{}, false)

	res := svc.ProcessMessage(context.Background(), request("ürün ara"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if res.Answer != "Araç sonucuna göre cevap." {
		t.Errorf("Answer = %q", res.Answer)
	}
	// The tool ran twice but is reported once.
	if len(res.UsedTools) != 1 || res.UsedTools[0] != "echo_tool" {
		t.Errorf("UsedTools = %v, want [echo_tool]", res.UsedTools)
	}
	if model.streamCalls != 2 {
		t.Errorf("streamCalls = %d, want 2", model.streamCalls)
	}

	// The second model call must see the assistant tool request and both
	// tool results.
	var toolMsgs int
	for _, m := range model.lastMessages {
		if m.Role == constant.ChatMessageRoleTool {
			toolMsgs++
			if m.Content != "tool output" {
				t.Errorf("tool message content = %q", m.Content)
			}
		}
	}
	if toolMsgs != 2 {
		t.Errorf("tool messages in history = %d, want 2", toolMsgs)
	}
	if len(parts.memory.appended) != 2 {
		t.Errorf("persisted %d messages, want 2", len(parts.memory.appended))
	}
}

// keywordHitRepo has an empty vector index but keyword matches, the shape of
// a store whose embedding worker has not run yet.
type keywordHitRepo struct {
	stubKnowledgeRepo
	filteredCalls int
}

func (r *keywordHitRepo) Search(ctx context.Context, term string, limit int) ([]*entity.KnowledgeDocument, error) {
	return []*entity.KnowledgeDocument{{Id: 4, Title: "Bluetooth Kulaklık", Content: "Kablosuz kulaklık, 30 saat pil."}}, nil
}

func (r *keywordHitRepo) FilteredSearch(ctx context.Context, term string, minPrice, maxPrice *float64, category string, limit int) ([]*entity.KnowledgeDocument, error) {
	r.filteredCalls++
	return nil, nil
}

func TestProcessMessageKeywordFallbackGrounding(t *testing.T) {
	repo := &keywordHitRepo{}
	memory := &fakeMemory{}
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamText("Bluetooth Kulaklık öneririm."),
	}}
	engine := rag.NewEngine(repo, nil, nil, rag.Config{})
	svc := NewChatService(memory, engine, nil, newTestRegistry(t), model, nil, config.ChatConfig{}, nil, nil)

	res := svc.ProcessMessage(context.Background(), request("kulaklık önerir misin"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	// The category word must not divert retrieval into the filtered path.
	if repo.filteredCalls != 0 {
		t.Errorf("filtered search ran %d times during retrieval", repo.filteredCalls)
	}
	system := model.lastMessages[0]
	if system.Role != constant.ChatMessageRoleSystem {
		t.Fatalf("messages[0].Role = %s, want system", system.Role)
	}
	if !strings.Contains(system.Content, "BİLGİ BANKASI") {
		t.Errorf("system prompt has no grounding block: %q", system.Content)
	}
	if !strings.Contains(system.Content, "Bluetooth Kulaklık") {
		t.Errorf("keyword hit missing from the grounding block: %q", system.Content)
	}
}

func TestProcessMessageToolLoopKeepsInterimText(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamToolCall("Stok durumuna bakıyorum. ", llm.ToolCall{Name: "echo_tool"}),
		streamText("Ürün stokta var."),
	}}
	svc, _ := newTestService(t, model, config.ChatConfig{}, false)

	res := svc.ProcessMessage(context.Background(), request("kulaklık stokta mı"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if res.Answer != "Stok durumuna bakıyorum. Ürün stokta var." {
		t.Errorf("Answer = %q, text before the tool call was dropped", res.Answer)
	}
}

func TestProcessMessageIterationCap(t *testing.T) {
	loop := streamToolCall("kısmi ", llm.ToolCall{Name: "echo_tool"})
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){loop, loop, loop}}
	svc, _ := newTestService(t, model, config.ChatConfig{MaxToolIterations: 2}, false)

	res := svc.ProcessMessage(context.Background(), request("ürün ara"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if model.streamCalls != 2 {
		t.Errorf("streamCalls = %d, want the cap of 2", model.streamCalls)
	}
	if !strings.HasSuffix(res.Answer, constant.TruncationNotice) {
		t.Errorf("Answer = %q, want truncation notice suffix", res.Answer)
	}
	if !strings.Contains(res.Answer, "kısmi") {
		t.Errorf("Answer = %q, accumulated text lost", res.Answer)
	}
}

func TestProcessMessageAuthorizationAbort(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamToolCall("", llm.ToolCall{Name: "forbidden_tool"}),
	}}
	svc, parts := newTestService(t, model, config.ChatConfig{}, false)

	res := svc.ProcessMessage(context.Background(), request("gizli ürünü göster"), &toolctx.Context{
		SubjectId:         "u1",
		Role:              toolctx.RoleCustomer,
		AllowedProductIds: []int{1},
	})

	if res.Success {
		t.Fatal("authorization failure must not be a success")
	}
	if !strings.HasPrefix(res.ErrorMessage, constant.AuthorizationErrorPrefix) {
		t.Errorf("ErrorMessage = %q, want %q prefix", res.ErrorMessage, constant.AuthorizationErrorPrefix)
	}
	if res.Answer != "" {
		t.Errorf("Answer = %q, want empty", res.Answer)
	}
	if len(parts.memory.appended) != 0 {
		t.Errorf("aborted turn persisted %d messages", len(parts.memory.appended))
	}
}

func TestProcessMessageModelFailure(t *testing.T) {
	t.Run("nothing accumulated", func(t *testing.T) {
		model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
			func(ctx context.Context) (*llm.StreamResult, error) {
				return nil, errors.New("connection refused")
			},
		}}
		svc, parts := newTestService(t, model, config.ChatConfig{}, false)

		res := svc.ProcessMessage(context.Background(), request("merhaba"), nil)

		if res.Success {
			t.Fatal("model failure with no content must not be a success")
		}
		if res.ErrorMessage != "connection refused" {
			t.Errorf("ErrorMessage = %q", res.ErrorMessage)
		}
		if len(parts.memory.appended) != 0 {
			t.Errorf("failed turn persisted %d messages", len(parts.memory.appended))
		}
	})

	t.Run("partial content yields the apology", func(t *testing.T) {
		model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
			streamToolCall("kısmi cevap", llm.ToolCall{Name: "echo_tool"}),
			func(ctx context.Context) (*llm.StreamResult, error) {
				return nil, errors.New("connection reset")
			},
		}}
		svc, _ := newTestService(t, model, config.ChatConfig{}, false)

		res := svc.ProcessMessage(context.Background(), request("merhaba"), nil)

		if !res.Success {
			t.Fatalf("Success = false, error: %s", res.ErrorMessage)
		}
		if res.Answer != constant.ApologyAnswer {
			t.Errorf("Answer = %q, want the apology", res.Answer)
		}
	})
}

func TestProcessMessageDeadline(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		func(ctx context.Context) (*llm.StreamResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	svc, _ := newTestService(t, model, config.ChatConfig{TurnTimeout: time.Millisecond}, false)

	res := svc.ProcessMessage(context.Background(), request("merhaba"), nil)

	if !res.Success {
		t.Fatalf("Success = false, error: %s", res.ErrorMessage)
	}
	if res.Answer != constant.TruncationNotice {
		t.Errorf("Answer = %q, want bare truncation notice", res.Answer)
	}
}

func TestProcessMessagePersistenceFailureIsNonFatal(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamText("cevap"),
	}}
	svc, parts := newTestService(t, model, config.ChatConfig{}, false)
	parts.memory.appendErr = errors.New("db down")

	res := svc.ProcessMessage(context.Background(), request("merhaba"), nil)

	if !res.Success {
		t.Fatal("persistence failure must not fail the turn")
	}
	if res.Answer != "cevap" {
		t.Errorf("Answer = %q", res.Answer)
	}
}

func TestProcessMessageHistoryFiltering(t *testing.T) {
	model := &fakeLLM{streamResults: []func(ctx context.Context) (*llm.StreamResult, error){
		streamText("cevap"),
	}}
	svc, parts := newTestService(t, model, config.ChatConfig{}, false)
	parts.memory.history = []*entity.ChatMessage{
		{Role: constant.ChatMessageRoleUser, Content: "önceki soru"},
		{Role: constant.ChatMessageRoleAssistant, Content: "önceki cevap"},
		{Role: constant.ChatMessageRoleTool, Content: "eski araç çıktısı"},
		{Role: constant.ChatMessageRoleSystem, Content: "eski sistem mesajı"},
	}

	svc.ProcessMessage(context.Background(), request("yeni soru"), nil)

	// Expected shape: fresh system prompt, replayed user/assistant pair,
	// then the new user message. Stored system and tool rows are skipped.
	if len(model.lastMessages) != 4 {
		t.Fatalf("model saw %d messages, want 4", len(model.lastMessages))
	}
	if model.lastMessages[0].Role != constant.ChatMessageRoleSystem {
		t.Errorf("messages[0].Role = %s, want system", model.lastMessages[0].Role)
	}
	if model.lastMessages[1].Content != "önceki soru" || model.lastMessages[2].Content != "önceki cevap" {
		t.Errorf("history not replayed: %v", model.lastMessages)
	}
	if model.lastMessages[3].Content != "yeni soru" {
		t.Errorf("messages[3].Content = %q", model.lastMessages[3].Content)
	}
}

func TestResolveIdentity(t *testing.T) {
	t.Run("body fills an anonymous identity", func(t *testing.T) {
		req := &dto.ChatRequest{Role: toolctx.RoleCustomer, AllowedProductIds: []int{1, 2}}
		got := resolveIdentity(req, nil)
		if got.Role != toolctx.RoleCustomer {
			t.Errorf("Role = %q", got.Role)
		}
		if len(got.AllowedProductIds) != 2 {
			t.Errorf("AllowedProductIds = %v", got.AllowedProductIds)
		}
	})

	t.Run("token identity wins over the body", func(t *testing.T) {
		req := &dto.ChatRequest{Role: toolctx.RoleAdmin, AllowedProductIds: []int{9}}
		identity := &toolctx.Context{SubjectId: "u1", Role: toolctx.RoleCustomer, AllowedProductIds: []int{1}}
		got := resolveIdentity(req, identity)
		if got.Role != toolctx.RoleCustomer {
			t.Errorf("Role = %q, body must not override the token", got.Role)
		}
		if len(got.AllowedProductIds) != 1 || got.AllowedProductIds[0] != 1 {
			t.Errorf("AllowedProductIds = %v", got.AllowedProductIds)
		}
	})
}

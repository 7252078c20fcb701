package memory

import (
	"context"
	"sync"
	"time"

	"ai-chatbot-be/internal/entity"
	"ai-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ChatMemoryRepository keeps session history in process memory. Used when no
// database is configured and as the fast path in tests.
type ChatMemoryRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

var _ contract.ChatMemoryRepository = &ChatMemoryRepository{}

func NewChatMemoryRepository() *ChatMemoryRepository {
	// Sessions idle for 24 hours are evicted; the sweep runs every hour.
	c := cache.New(24*time.Hour, 1*time.Hour)
	return &ChatMemoryRepository{
		cache: c,
	}
}

func (r *ChatMemoryRepository) AppendMessage(ctx context.Context, sessionId, subjectId string, msg *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []*entity.ChatMessage
	if x, found := r.cache.Get(sessionId); found {
		history = x.([]*entity.ChatMessage)
	}

	stored := *msg
	if stored.Id == uuid.Nil {
		stored.Id = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.SessionId = sessionId

	history = append(history, &stored)
	r.cache.Set(sessionId, history, cache.DefaultExpiration)

	*msg = stored
	return nil
}

func (r *ChatMemoryRepository) GetHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(sessionId)
	if !found {
		return []*entity.ChatMessage{}, nil
	}

	history := x.([]*entity.ChatMessage)

	// Copy so callers cannot mutate the stored slice.
	out := make([]*entity.ChatMessage, len(history))
	for i, m := range history {
		c := *m
		out[i] = &c
	}
	return out, nil
}

func (r *ChatMemoryRepository) Clear(ctx context.Context, sessionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(sessionId)
	return nil
}

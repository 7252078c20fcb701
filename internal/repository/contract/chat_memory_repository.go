package contract

import (
	"context"

	"ai-chatbot-be/internal/entity"
)

// ChatMemoryRepository stores per-session conversation history. Backed either
// by Postgres or by an in-process cache; the orchestrator treats both the same.
type ChatMemoryRepository interface {
	// AppendMessage records one message at the end of the session's history,
	// creating the session row on first use.
	AppendMessage(ctx context.Context, sessionId, subjectId string, msg *entity.ChatMessage) error

	// GetHistory returns the session's messages in chronological order.
	// An unknown session yields an empty slice, not an error.
	GetHistory(ctx context.Context, sessionId string) ([]*entity.ChatMessage, error)

	// Clear removes the session's history. Clearing an unknown session is a
	// no-op.
	Clear(ctx context.Context, sessionId string) error
}

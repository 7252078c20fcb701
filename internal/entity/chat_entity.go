package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	SessionId string
	SubjectId string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ToolCallRecord is what gets persisted alongside an assistant message when
// the model requested tool execution during the turn.
type ToolCallRecord struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type ChatMessage struct {
	Id        uuid.UUID
	SessionId string
	Role      string
	Content   string
	ToolCalls []ToolCallRecord
	CreatedAt time.Time
}

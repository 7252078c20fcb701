package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewChatTurnCompleted describes one finished conversational turn. Consumers
// use it for analytics; publishing is best effort and never blocks a reply.
func NewChatTurnCompleted(sessionId, subjectId string, usedTools []string, success bool) Event {
	return BaseEvent{
		Type: "CHAT_TURN_COMPLETED",
		Data: map[string]interface{}{
			"session_id": sessionId,
			"subject_id": subjectId,
			"used_tools": usedTools,
			"success":    success,
		},
		OccurredAt: time.Now(),
	}
}

// NewKnowledgeDocumentChanged marks a document whose embeddings must be
// rebuilt.
func NewKnowledgeDocumentChanged(documentId int) Event {
	return BaseEvent{
		Type: "KNOWLEDGE_DOCUMENT_CHANGED",
		Data: map[string]interface{}{
			"document_id": documentId,
		},
		OccurredAt: time.Now(),
	}
}

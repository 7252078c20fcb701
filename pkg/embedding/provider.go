package embedding

import "context"

// TaskType hints how the text will be used. Some backends encode queries and
// documents differently; Ollama ignores the hint.
type TaskType string

const (
	TaskTypeQuery    TaskType = "RETRIEVAL_QUERY"
	TaskTypeDocument TaskType = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider turns text into a fixed-dimension vector.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType TaskType) ([]float32, error)
}

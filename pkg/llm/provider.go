package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system", "tool"
	Content string

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall

	// ToolName is set on tool-role messages carrying an execution result.
	ToolName string
}

// ToolCall is a structured function-call request emitted by the model.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// ToolDef describes a callable tool advertised to the model.
type ToolDef struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the argument map.
	Parameters map[string]interface{}
}

// StreamUpdate is one increment of a streaming response: a text delta, a
// batch of tool-call requests, or both.
type StreamUpdate struct {
	Delta     string
	ToolCalls []ToolCall
}

// StreamHandler receives updates as they arrive. It must not block for long;
// it runs on the decoding goroutine.
type StreamHandler func(update StreamUpdate)

// StreamResult is the fully accumulated outcome of one streaming call.
type StreamResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend.
//
// ChatStream is the tool-aware path: the model may interleave text deltas and
// function-call requests; both are reported through onUpdate and returned
// accumulated. Chat is the plain request/response variant used for quick
// reformatting calls.
type LLMProvider interface {
	ChatStream(ctx context.Context, history []Message, tools []ToolDef, onUpdate StreamHandler, options ...Option) (*StreamResult, error)

	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
}

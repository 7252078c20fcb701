package factory

import (
	"fmt"
	"strings"

	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/llm/ollama"
)

// NewLLMProvider selects the chat backend by name. Only "ollama" is wired
// today; the switch keeps the call sites stable when more arrive.
func NewLLMProvider(provider, model, baseURL string) (llm.LLMProvider, error) {
	switch strings.ToLower(provider) {
	case "ollama", "":
		return ollama.NewOllamaProvider(baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

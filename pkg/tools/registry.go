package tools

import (
	"context"
	"errors"
	"fmt"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/toolctx"
)

// Arguments is a parsed tool-call argument map with forgiving typed getters;
// models are sloppy about number vs string encoding.
type Arguments map[string]interface{}

func (a Arguments) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

func (a Arguments) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (a Arguments) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Tool is one callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON-schema object advertised to the model.
	Parameters map[string]interface{}
	// RequireIdentity marks tools that refuse anonymous callers outright.
	RequireIdentity bool
	Handler         func(ctx context.Context, args Arguments) (string, error)
}

// Registry holds the tool set for the model loop. Execution failures are
// normalized into user-facing text; only authorization failures escape as
// errors and abort the turn.
type Registry struct {
	tools []*Tool
	index map[string]*Tool
	log   logger.ILogger
}

func NewRegistry(log logger.ILogger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Registry{
		index: make(map[string]*Tool),
		log:   log,
	}
}

func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if _, exists := r.index[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	r.tools = append(r.tools, t)
	r.index[t.Name] = t
	return nil
}

// Defs returns the advertised tool definitions in registration order.
func (r *Registry) Defs() []llm.ToolDef {
	defs := make([]llm.ToolDef, len(r.tools))
	for i, t := range r.tools {
		defs[i] = llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}
	return defs
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Execute runs one model-requested call. The returned string always carries
// something the conversation can continue with; a non-nil error means a hard
// authorization failure.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) (result string, err error) {
	tool, ok := r.index[call.Name]
	if !ok {
		r.log.Warn("tools", "unknown tool requested", map[string]interface{}{
			"tool": call.Name,
		})
		return fmt.Sprintf("⚠️ Bilinmeyen araç: %s", call.Name), nil
	}

	identity, _ := toolctx.From(ctx)
	if tool.RequireIdentity && identity.IsAnonymous() {
		return "", fmt.Errorf("tool %s: %w", tool.Name, toolctx.ErrUnauthorized)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tools", "tool panicked", map[string]interface{}{
				"tool":  tool.Name,
				"panic": fmt.Sprint(rec),
			})
			result = fmt.Sprintf("❌ Araç hatası (%s): beklenmeyen hata", tool.Name)
			err = nil
		}
	}()

	r.log.Info("tools", "executing tool", map[string]interface{}{
		"tool": tool.Name,
	})

	out, execErr := tool.Handler(ctx, Arguments(call.Arguments))
	if execErr != nil {
		if errors.Is(execErr, toolctx.ErrUnauthorized) {
			return "", fmt.Errorf("tool %s: %w", tool.Name, execErr)
		}
		r.log.Error("tools", "tool failed", map[string]interface{}{
			"tool":  tool.Name,
			"error": execErr.Error(),
		})
		return fmt.Sprintf("❌ Araç hatası (%s): %s", tool.Name, execErr.Error()), nil
	}
	return out, nil
}

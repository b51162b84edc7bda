package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON-Schema-shaped parameter description, e.g.
// {"type": "object", "properties": {...}, "required": [...]}.
type Schema map[string]interface{}

// FunctionTool represents a callable tool the LLM can invoke (§6 Tool
// Contract). Execute returns the result_mapping the LLM's tool-result
// message carries back.
type FunctionTool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

	// Transfer reports whether this tool hands control to another agent
	// (a "handoff" tool). Transfer tools are exempted from
	// should_interrupt_playback's barge-in suppression, per §9.
	Transfer() bool
}

// ValidateArguments checks args against tool's declared schema using
// gojsonschema, grounded on the mcp/protocol validation pattern.
func ValidateArguments(tool FunctionTool, args map[string]interface{}) error {
	schema := tool.Schema()
	if len(schema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(map[string]interface{}(schema))
	argsLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("tools: schema validation failed for %q: %w", tool.Name(), err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("tools: invalid arguments for %q: %v", tool.Name(), msgs)
	}
	return nil
}

// ToolRegistry manages a collection of function tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]FunctionTool
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]FunctionTool),
	}
}

// Register adds a function tool to the registry.
func (r *ToolRegistry) Register(tool FunctionTool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool with name '%s' already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// Lookup finds a tool by name.
func (r *ToolRegistry) Lookup(name string) (FunctionTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools.
func (r *ToolRegistry) List() []FunctionTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]FunctionTool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Remove removes a tool from the registry.
func (r *ToolRegistry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		delete(r.tools, name)
		return true
	}
	return false
}

// Clear removes all tools from the registry.
func (r *ToolRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools = make(map[string]FunctionTool)
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Names returns all tool names.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute looks up name and runs it with schema validation, the single entry
// point process_turn's tool-call loop uses (§4.5.1 step 5).
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("tools: %q not registered", name)
	}
	if err := ValidateArguments(tool, args); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

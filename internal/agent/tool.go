// Package agent implements C9: the per-session agent turn runtime —
// context assembly from C7/C8, streaming completion via C2/C1, tool
// dispatch with approval gating, and the post-turn ACE learning loop.
//
// Grounded on original_source's backend/app/agent/agent.py (turn loop,
// truncation rules, module-scoped system prompt) and hector's
// pkg/agent/{tool_approval,context_builder}.go (approval gating and
// context-value shape).
package agent

import (
	"context"

	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/registry"
)

// ToolResult is a tool's outcome, both in its full form (appended to
// history verbatim) and its display form (truncated for the client).
type ToolResult struct {
	Success  bool
	Content  string
	Error    string
	Metadata map[string]any
}

// Tool is one agent-callable capability.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	RequiresApproval() bool
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolRegistry is the set of tools available to a session.
type ToolRegistry struct {
	reg *registry.BaseRegistry[Tool]
}

// NewToolRegistry constructs an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{reg: registry.NewRegistry[Tool]()}
}

// Register adds a tool. It panics on a duplicate name — tool sets are
// assembled once at startup, so a collision is a wiring bug.
func (r *ToolRegistry) Register(t Tool) {
	if err := r.reg.Register(t.Name(), t); err != nil {
		panic(err)
	}
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, err := r.reg.Get(name)
	if err != nil {
		return nil, false
	}
	return t, true
}

// Definitions renders every registered tool as an OpenAI-shaped
// llm.ToolDefinition, for inclusion in a streaming request.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	names := r.reg.List()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, _ := r.reg.Get(name)
		defs = append(defs, llm.ConvertToolInfoToDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}

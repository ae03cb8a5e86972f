package agent

// ModulePrompts holds an optional system-prompt template per module
// id, matching agent.py's frontend_id special-casing (e.g.
// "3d-gen"'s mesh-JSON response contract) generalized into a lookup
// table instead of one hardcoded branch.
type ModulePrompts map[string]string

// DefaultModulePrompts seeds the one concrete non-empty template the
// original carries, so internal/agent demonstrates module-scoped
// prompt assembly beyond the empty default.
func DefaultModulePrompts() ModulePrompts {
	return ModulePrompts{
		"3d-gen": `You are assisting with a 3D asset generation workflow. When asked to describe or modify geometry, respond with a JSON object describing the mesh: {"vertices": [[x,y,z], ...], "faces": [[i,j,k], ...]}. For any other request, respond normally.`,
	}
}

// Lookup returns the system prompt for moduleID, if one is registered.
func (m ModulePrompts) Lookup(moduleID string) (string, bool) {
	prompt, ok := m[moduleID]
	return prompt, ok
}

package tools

import (
	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
)

// NewRegistry builds the standard tool set — list_files, read_file,
// write_file, run_command, search_files — bound to one workspace
// policy, ready for agent.Runtime.Tools.
func NewRegistry(policy *config.WorkspacePolicy) *agent.ToolRegistry {
	reg := agent.NewToolRegistry()
	reg.Register(&ListFiles{Policy: policy})
	reg.Register(&ReadFile{Policy: policy})
	reg.Register(&WriteFile{Policy: policy})
	reg.Register(&RunCommand{Policy: policy})
	reg.Register(&SearchFiles{Policy: policy})
	return reg
}

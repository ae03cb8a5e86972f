package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
)

// WriteFile creates or overwrites a file inside the workspace,
// matching filetool.NewWriteFile's backup-on-overwrite behavior.
type WriteFile struct {
	Policy *config.WorkspacePolicy
}

func (t *WriteFile) Name() string           { return "write_file" }
func (t *WriteFile) RequiresApproval() bool { return true }

func (t *WriteFile) Description() string {
	return "Create a new file or overwrite an existing one inside the workspace. Backs up the previous content to a .bak file when overwriting."
}

func (t *WriteFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "file path relative to the workspace root"},
			"content": map[string]any{"type": "string", "description": "content to write"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFile) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	rel, ok := stringArg(args, "path")
	if !ok || rel == "" {
		return agent.ToolResult{Success: false, Error: "path is required"}, nil
	}
	content, _ := stringArg(args, "content")

	if t.Policy.MaxFileBytes > 0 && int64(len(content)) > t.Policy.MaxFileBytes {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("content is %d bytes, exceeds max %d", len(content), t.Policy.MaxFileBytes)}, nil
	}

	full, err := resolveWrite(t.Policy, rel)
	if err != nil {
		return agent.ToolResult{Success: false, Error: err.Error()}, nil
	}

	var backedUp bool
	if existing, err := os.ReadFile(full); err == nil {
		if err := os.WriteFile(full+".bak", existing, 0o644); err == nil {
			backedUp = true
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("create parent directory for %s: %v", rel, err)}, nil
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("write %s: %v", rel, err)}, nil
	}

	return agent.ToolResult{
		Success: true,
		Content: fmt.Sprintf("wrote %d bytes to %s", len(content), rel),
		Metadata: map[string]any{
			"path":      rel,
			"bytes":     len(content),
			"backed_up": backedUp,
		},
	}, nil
}

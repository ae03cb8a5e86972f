package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
)

// ReadFile reads one file's content, optionally restricted to a line
// range, matching filetool.NewReadFile's argument shape (path plus
// optional start_line/end_line).
type ReadFile struct {
	Policy *config.WorkspacePolicy
}

func (t *ReadFile) Name() string            { return "read_file" }
func (t *ReadFile) RequiresApproval() bool  { return false }

func (t *ReadFile) Description() string {
	return "Read the contents of a file inside the workspace, with optional start_line/end_line range selection."
}

func (t *ReadFile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "file path relative to the workspace root"},
			"start_line": map[string]any{"type": "integer", "description": "first line to include, 1-indexed"},
			"end_line":   map[string]any{"type": "integer", "description": "last line to include, inclusive"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFile) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	rel, ok := stringArg(args, "path")
	if !ok || rel == "" {
		return agent.ToolResult{Success: false, Error: "path is required"}, nil
	}

	full, err := resolveRead(t.Policy, rel)
	if err != nil {
		return agent.ToolResult{Success: false, Error: err.Error()}, nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("stat %s: %v", rel, err)}, nil
	}
	if t.Policy.MaxFileBytes > 0 && info.Size() > t.Policy.MaxFileBytes {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("%v: file %s is %d bytes, exceeds max %d", errs.ErrPolicyViolation, rel, info.Size(), t.Policy.MaxFileBytes)}, nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("read %s: %v", rel, err)}, nil
	}

	lines := strings.Split(string(content), "\n")
	total := len(lines)

	start := intArg(args, "start_line", 1)
	if start < 1 {
		start = 1
	}
	end := intArg(args, "end_line", total)
	if end > total {
		end = total
	}
	if start > total {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("start_line %d exceeds file length %d", start, total)}, nil
	}
	if start > end {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("start_line %d is after end_line %d", start, end)}, nil
	}

	selected := strings.Join(lines[start-1:end], "\n")

	return agent.ToolResult{
		Success: true,
		Content: selected,
		Metadata: map[string]any{
			"path":        rel,
			"total_lines": total,
			"start_line":  start,
			"end_line":    end,
		},
	}, nil
}

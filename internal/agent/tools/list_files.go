package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
)

// ListFiles enumerates the files (and, non-recursively, directories)
// under one workspace-relative path, grounded on indexer.DiscoverFiles'
// filepath.WalkDir idiom generalized to list everything rather than
// just indexable extensions.
type ListFiles struct {
	Policy *config.WorkspacePolicy
}

func (t *ListFiles) Name() string           { return "list_files" }
func (t *ListFiles) RequiresApproval() bool { return false }

func (t *ListFiles) Description() string {
	return "List files and directories under a path inside the workspace, optionally recursing into subdirectories."
}

func (t *ListFiles) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "directory relative to the workspace root, defaults to the root"},
			"recursive": map[string]any{"type": "boolean", "description": "descend into subdirectories", "default": false},
		},
	}
}

func (t *ListFiles) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	rel, _ := stringArg(args, "path")
	if rel == "" {
		rel = "."
	}
	recursive := boolArg(args, "recursive", false)

	full, err := resolveRead(t.Policy, rel)
	if err != nil {
		return agent.ToolResult{Success: false, Error: err.Error()}, nil
	}

	var entries []string
	walkErr := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == full {
			return nil
		}
		relPath, relErr := filepath.Rel(full, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			entries = append(entries, relPath+"/")
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, relPath)
		return nil
	})
	if walkErr != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("list %s: %v", rel, walkErr)}, nil
	}

	sort.Strings(entries)

	content := ""
	for i, e := range entries {
		if i > 0 {
			content += "\n"
		}
		content += e
	}

	return agent.ToolResult{
		Success: true,
		Content: content,
		Metadata: map[string]any{
			"path":  rel,
			"count": len(entries),
		},
	}, nil
}

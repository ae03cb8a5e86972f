package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
)

const searchMaxResults = 200

// SearchFiles greps a regex pattern across the workspace, matching
// filetool.NewGrepSearch's argument shape (pattern, path,
// case_insensitive) simplified to a single result cap instead of
// separately configurable context lines.
type SearchFiles struct {
	Policy *config.WorkspacePolicy
}

func (t *SearchFiles) Name() string           { return "search_files" }
func (t *SearchFiles) RequiresApproval() bool { return false }

func (t *SearchFiles) Description() string {
	return "Search file contents under the workspace for a regular expression pattern, returning matching lines with their file and line number."
}

func (t *SearchFiles) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":          map[string]any{"type": "string", "description": "regular expression to search for"},
			"path":             map[string]any{"type": "string", "description": "directory relative to the workspace root, defaults to the root"},
			"case_insensitive": map[string]any{"type": "boolean", "default": false},
		},
		"required": []string{"pattern"},
	}
}

func (t *SearchFiles) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	pattern, ok := stringArg(args, "pattern")
	if !ok || pattern == "" {
		return agent.ToolResult{Success: false, Error: "pattern is required"}, nil
	}
	if boolArg(args, "case_insensitive", false) {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("invalid pattern: %v", err)}, nil
	}

	rel, _ := stringArg(args, "path")
	if rel == "" {
		rel = "."
	}
	full, err := resolveRead(t.Policy, rel)
	if err != nil {
		return agent.ToolResult{Success: false, Error: err.Error()}, nil
	}

	var matches []string
	walkErr := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil || len(matches) >= searchMaxResults {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(t.Policy.Root, path)
		if relErr != nil {
			return nil
		}
		if denyErr := checkGlobs(relPath, t.Policy.AllowedReadGlobs, firstNonEmptyGlobs(t.Policy.DeniedReadGlobs, t.Policy.DeniedGlobs)); denyErr != nil {
			return nil
		}
		matchFile(path, relPath, re, &matches)
		return nil
	})
	if walkErr != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("search %s: %v", rel, walkErr)}, nil
	}

	return agent.ToolResult{
		Success: true,
		Content: strings.Join(matches, "\n"),
		Metadata: map[string]any{
			"path":  rel,
			"count": len(matches),
		},
	}, nil
}

func matchFile(fullPath, relPath string, re *regexp.Regexp, matches *[]string) {
	f, err := os.Open(fullPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(*matches) >= searchMaxResults {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			*matches = append(*matches, fmt.Sprintf("%s:%d: %s", relPath, lineNo, line))
		}
	}
}

func firstNonEmptyGlobs(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

package retriever

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// searchWithRipgrep shells out to `rg --vimgrep` over root, matching
// retriever.py's _search_with_ripgrep (fixed-string by default,
// regex when useRegex is set, one match line per hit capped by
// --max-count).
func searchWithRipgrep(ctx context.Context, rgPath, root, query string, limit int, useRegex bool) ([]Result, error) {
	args := []string{"--vimgrep", "--no-heading", "--max-count", strconv.Itoa(limit)}
	if !useRegex {
		args = append(args, "-F")
	}
	args = append(args, query, root)

	cmd := exec.CommandContext(ctx, rgPath, args...)
	cmd.Dir = root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()

	// ripgrep exits 1 when there are no matches — not an error for us.
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("retriever: ripgrep: %w", err)
		}
	}

	var results []Result
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 4 {
			continue
		}
		filePath, lineNoStr, colNoStr, text := parts[0], parts[1], parts[2], parts[3]

		relPath := filePath
		if filepath.IsAbs(filePath) {
			if rel, err := filepath.Rel(root, filePath); err == nil {
				relPath = rel
			}
		}
		lineNo, _ := strconv.Atoi(lineNoStr)
		colNo, _ := strconv.Atoi(colNoStr)

		results = append(results, Result{
			Score:   0.55,
			Content: strings.TrimSpace(text),
			Source:  relPath,
			Metadata: map[string]any{
				"source_type": "text",
				"file_path":   relPath,
				"line":        lineNo,
				"column":      colNo,
			},
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

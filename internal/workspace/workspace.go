// Package workspace sandboxes file paths to a workspace root so every
// file-touching tool enforces the same boundary, rather than each tool
// reimplementing it. Grounded on original_source's
// backend/app/core/workspace_paths.py.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/errs"
)

// ResolvePath joins rel onto root and verifies the result does not
// escape root (via "..", a symlink-free lexical check, or an absolute
// path substitution). It returns the cleaned absolute path on success.
func ResolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", errs.ErrValidation)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolve workspace root: %v", errs.ErrValidation, err)
	}

	joined := filepath.Join(absRoot, rel)
	cleaned := filepath.Clean(joined)

	rootWithSep := absRoot
	if !strings.HasSuffix(rootWithSep, string(filepath.Separator)) {
		rootWithSep += string(filepath.Separator)
	}

	if cleaned != absRoot && !strings.HasPrefix(cleaned, rootWithSep) {
		return "", fmt.Errorf("%w: path %q escapes workspace root %q", errs.ErrPolicyViolation, rel, root)
	}

	return cleaned, nil
}

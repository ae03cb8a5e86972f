// Package tools implements the concrete agent-callable capabilities
// SPEC_FULL.md names: list_files, read_file, write_file, run_command,
// search_files. Every file-touching tool resolves its path through
// internal/workspace.ResolvePath so sandboxing lives in one place
// rather than being re-implemented per tool.
//
// Grounded on hector's pkg/tool/filetool/{read_file,write_file,
// grep_search}.go (argument shape, path validation, output framing)
// and original_source's backend/app/agent/tools/{file_tools,
// shell_tools}.py (the operation set and command-allowlist policy).
package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
	"github.com/KhaineVulpana/loco-core/internal/workspace"
)

// checkGlobs returns an error if rel matches any pattern in denied, or
// fails to match at least one pattern in allowed (when allowed is
// non-empty). Patterns are matched against both the relative path and
// its basename, mirroring filetool's "**/*.ext"-by-basename shortcut
// without pulling in a doublestar dependency the pack doesn't carry.
func checkGlobs(rel string, allowed, denied []string) error {
	base := filepath.Base(rel)
	for _, pattern := range denied {
		if globMatches(pattern, rel, base) {
			return fmt.Errorf("%w: path %q matches denied pattern %q", errs.ErrPolicyViolation, rel, pattern)
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, pattern := range allowed {
		if globMatches(pattern, rel, base) {
			return nil
		}
	}
	return fmt.Errorf("%w: path %q matches no allowed pattern", errs.ErrPolicyViolation, rel)
}

func globMatches(pattern, rel, base string) bool {
	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, base); ok {
		return true
	}
	return strings.Contains(rel, strings.Trim(pattern, "*"))
}

// resolveRead validates rel against policy's read globs (falling back
// to DeniedGlobs when no read-specific list is configured) and
// resolves it under policy.Root.
func resolveRead(policy *config.WorkspacePolicy, rel string) (string, error) {
	denied := policy.DeniedReadGlobs
	if len(denied) == 0 {
		denied = policy.DeniedGlobs
	}
	if err := checkGlobs(rel, policy.AllowedReadGlobs, denied); err != nil {
		return "", err
	}
	return workspace.ResolvePath(policy.Root, rel)
}

// resolveWrite validates rel against policy's write globs (falling
// back to DeniedGlobs) and resolves it under policy.Root.
func resolveWrite(policy *config.WorkspacePolicy, rel string) (string, error) {
	denied := policy.DeniedWriteGlobs
	if len(denied) == 0 {
		denied = policy.DeniedGlobs
	}
	if err := checkGlobs(rel, policy.AllowedWriteGlobs, denied); err != nil {
		return "", err
	}
	return workspace.ResolvePath(policy.Root, rel)
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
)

const defaultCommandTimeout = 30 * time.Second

// RunCommand executes a shell command with the workspace root as its
// working directory, matching shell_tools.py's RunCommandTool:
// requires approval, times out at 30s by default, captures stdout and
// stderr separately, and reports success as return code zero.
type RunCommand struct {
	Policy *config.WorkspacePolicy
}

func (t *RunCommand) Name() string           { return "run_command" }
func (t *RunCommand) RequiresApproval() bool { return true }

func (t *RunCommand) Description() string {
	return "Execute a shell command in the workspace directory."
}

func (t *RunCommand) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "the command to execute"},
			"timeout": map[string]any{"type": "number", "description": "timeout in seconds", "default": 30},
		},
		"required": []string{"command"},
	}
}

func (t *RunCommand) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	command, ok := stringArg(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return agent.ToolResult{Success: false, Error: "command is required"}, nil
	}

	if err := t.checkAllowed(command); err != nil {
		return agent.ToolResult{Success: false, Error: err.Error()}, nil
	}

	timeout := defaultCommandTimeout
	if secs := intArg(args, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = t.Policy.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("command timed out after %s", timeout)}, nil
	}

	exitCode := 0
	success := err == nil
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("failed to execute command: %v", err)}, nil
	}

	content := stdout.String()
	if stderr.Len() > 0 {
		if content != "" {
			content += "\n"
		}
		content += "stderr:\n" + stderr.String()
	}

	return agent.ToolResult{
		Success: success,
		Content: content,
		Metadata: map[string]any{
			"command":     command,
			"return_code": exitCode,
			"stdout":      stdout.String(),
			"stderr":      stderr.String(),
		},
	}, nil
}

func (t *RunCommand) checkAllowed(command string) error {
	for _, denied := range t.Policy.DeniedCommands {
		if denied != "" && strings.Contains(command, denied) {
			return fmt.Errorf("%w: command matches denied pattern %q", errs.ErrPolicyViolation, denied)
		}
	}
	if len(t.Policy.AllowedCommands) == 0 {
		return nil
	}
	for _, allowed := range t.Policy.AllowedCommands {
		if strings.HasPrefix(strings.TrimSpace(command), allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: command does not match any allowed prefix", errs.ErrPolicyViolation)
}

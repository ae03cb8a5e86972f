package agent

import "github.com/KhaineVulpana/loco-core/internal/config"

// ApprovalDecision is the policy's verdict on whether a tool call that
// declares RequiresApproval may proceed without a client round trip.
type ApprovalDecision int

const (
	DecisionAutoApprove ApprovalDecision = iota
	DecisionAutoDeny
	DecisionAskUser
)

// EvaluatePolicy implements spec.md §6's policy-enforcement order: a
// tool on the auto-approve list always proceeds; otherwise a
// command-approval mode of "never" denies, "always" approves, and
// anything else (including the default "prompt") asks the user. A nil
// policy auto-approves everything, matching tool_approval.go's
// "toolConfigs is nil, allow all tools" safety fallback.
func EvaluatePolicy(policy *config.WorkspacePolicy, toolName string) ApprovalDecision {
	if policy == nil {
		return DecisionAutoApprove
	}
	for _, name := range policy.AutoApproveTools {
		if name == toolName {
			return DecisionAutoApprove
		}
	}
	switch policy.CommandApproval {
	case config.CommandApprovalNever:
		return DecisionAutoDeny
	case config.CommandApprovalAlways:
		return DecisionAutoApprove
	default:
		return DecisionAskUser
	}
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/KhaineVulpana/loco-core/internal/ace"
	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/modelmanager"
	"github.com/KhaineVulpana/loco-core/internal/observability"
	"github.com/KhaineVulpana/loco-core/internal/retriever"
)

// DefaultMaxIterations bounds a turn's tool-call/response iterations,
// matching agent.py's MAX_ITERATIONS.
const DefaultMaxIterations = 10

const (
	knowledgeRetrieveLimit  = 5
	knowledgeScoreThreshold = 0.6
	aceBulletRetrieveLimit  = 5
	aceBulletScoreThreshold = 0.5
	contextBlockTokenBudget = 1000
)

// ApprovalGate awaits a human decision for a pending tool call. It is
// implemented by internal/transport's session, which correlates the
// request id against an incoming client.approval_response event.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, requestID, toolName, prompt string) (approved bool, err error)
}

// Runtime drives turns for every session of one module/workspace
// pairing. A process typically holds one Runtime per active
// module+workspace combination, sharing the model manager, retriever,
// and playbook across sessions.
type Runtime struct {
	ModuleID      string
	WorkspaceID   string
	Models        *modelmanager.Manager
	LLMConfig     config.LLMConfig
	Retriever     *retriever.Retriever
	Playbook      *ace.Playbook
	Tools         *ToolRegistry
	Policy        *config.WorkspacePolicy
	Prompts       ModulePrompts
	Approval      ApprovalGate
	MaxIterations int
	Logger        *slog.Logger
	Learner       *Learner
}

func (r *Runtime) maxIterations() int {
	if r.MaxIterations > 0 {
		return r.MaxIterations
	}
	return DefaultMaxIterations
}

func (r *Runtime) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunTurn executes spec.md §4.9's turn algorithm against sess, sending
// every step's Event to events. It returns once a message_final event
// has been emitted (iteration cap, terminal assistant message, or a
// model stream error, which is also returned with success=false in the
// event's metadata). It returns without a message_final when no model
// is loaded, when a tool dispatch fails, or when the session has been
// cancelled.
func (r *Runtime) RunTurn(ctx context.Context, sess *Session, userMessage string, events chan<- Event) error {
	composed, usedBullets := r.composeUserContent(ctx, userMessage)
	sess.recordUsedBullets(usedBullets)
	sess.appendMessage(llm.Message{Role: "user", Content: composed})

	provider, _ := r.Models.Current()
	if provider == nil {
		return fmt.Errorf("%w: no model loaded", errs.ErrProviderUnavailable)
	}

	max := r.maxIterations()
	for iteration := 0; iteration < max; iteration++ {
		if sess.isCancelled() {
			return nil
		}

		events <- Event{Kind: EventThinking, Phase: "generating", Iteration: iteration}

		messages := r.buildMessages(sess)
		content, toolCalls, err := r.streamCompletion(ctx, provider, messages, events)
		if err != nil {
			events <- Event{
				Kind: EventMessageFinal,
				Metadata: map[string]any{
					"iterations": iteration + 1,
					"success":    false,
					"error":      err.Error(),
				},
			}
			return err
		}

		sess.appendMessage(llm.Message{Role: "assistant", Content: content, ToolCalls: toolCalls})

		if len(toolCalls) == 0 {
			events <- Event{
				Kind:    EventMessageFinal,
				Message: content,
				Metadata: map[string]any{
					"iterations": iteration + 1,
					"success":    true,
				},
			}
			r.launchLearning(ctx, userMessage, sess, true)
			return nil
		}

		if err := r.dispatchToolCalls(ctx, sess, toolCalls, events); err != nil {
			return err
		}
	}

	events <- Event{
		Kind:    EventMessageFinal,
		Message: "Reached the maximum number of iterations without a final answer.",
		Metadata: map[string]any{
			"iterations":             max,
			"success":                false,
			"max_iterations_reached": true,
		},
	}
	r.launchLearning(ctx, userMessage, sess, false)
	return nil
}

// launchLearning starts the ACE learning loop in the background using
// a context detached from the turn's own cancellation, so a cancelled
// or disconnected session doesn't abort learning mid-flight. Per
// spec.md §4.9, learning errors must never fail the turn itself — the
// turn has already returned to its caller by the time this runs.
func (r *Runtime) launchLearning(ctx context.Context, task string, sess *Session, success bool) {
	if r.Learner == nil {
		return
	}
	trajectory := sess.messages()
	usedBullets := sess.usedBulletIDs()
	bg := context.WithoutCancel(ctx)
	go r.Learner.Learn(bg, task, trajectory, map[string]any{"success": success}, nil, usedBullets)
}

// composeUserContent implements step 1-2: retrieve knowledge and ACE
// bullets (when a retriever is configured), then prepend both blocks
// (each headered) ahead of the original text, divided from it.
func (r *Runtime) composeUserContent(ctx context.Context, userMessage string) (string, []string) {
	if r.Retriever == nil {
		return userMessage, nil
	}

	var blocks []string
	var usedBullets []string

	knowledge, err := r.Retriever.Retrieve(ctx, r.ModuleID, userMessage, knowledgeRetrieveLimit, knowledgeScoreThreshold)
	if err != nil {
		r.logger().Warn("agent: knowledge retrieval failed", slog.String("error", err.Error()))
	}
	if len(knowledge) > 0 {
		pack := retriever.BuildContextPack(nil, "Relevant Knowledge", knowledge, contextBlockTokenBudget, nil)
		if pack.Text != "" {
			blocks = append(blocks, pack.Text)
		}
	}

	// Only inject ACE bullets as retrieved-per-turn context; when no
	// retriever is configured at all the caller is expected to embed
	// the full playbook text into the system prompt instead (see
	// buildMessages), per DESIGN.md's Open Question 1 resolution.
	bullets, err := r.Retriever.RetrieveACEBullets(ctx, r.ModuleID, userMessage, aceBulletRetrieveLimit, aceBulletScoreThreshold)
	if err != nil {
		r.logger().Warn("agent: ace bullet retrieval failed", slog.String("error", err.Error()))
	}
	if len(bullets) > 0 {
		pack := retriever.BuildContextPack(nil, "Playbook Bullets", bullets, contextBlockTokenBudget, nil)
		if pack.Text != "" {
			blocks = append(blocks, pack.Text)
		}
		for _, b := range bullets {
			usedBullets = append(usedBullets, bulletIDFromResult(b))
		}
	}

	if len(blocks) == 0 {
		return userMessage, usedBullets
	}

	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(userMessage)
	return b.String(), usedBullets
}

func bulletIDFromResult(r retriever.Result) string {
	if id, ok := r.Metadata["bullet_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := r.Metadata["id"].(string); ok && id != "" {
		return id
	}
	return strings.TrimPrefix(r.Source, "ace_bullet_")
}

// buildMessages assembles step 5(b): an optional system prompt
// (module-dependent, plus the full playbook text when no retriever is
// configured per Open Question 1) followed by history.
func (r *Runtime) buildMessages(sess *Session) []llm.Message {
	var system strings.Builder
	if r.Prompts != nil {
		if prompt, ok := r.Prompts.Lookup(r.ModuleID); ok {
			system.WriteString(prompt)
		}
	}
	if r.Retriever == nil && r.Playbook != nil && r.Playbook.GetBulletCount() > 0 {
		if system.Len() > 0 {
			system.WriteString("\n\n")
		}
		system.WriteString(r.Playbook.ToText())
	}

	messages := sess.messages()
	if system.Len() == 0 {
		return messages
	}
	return append([]llm.Message{{Role: "system", Content: system.String()}}, messages...)
}

// streamCompletion implements step 5(c): register inference with the
// model manager, stream tokens relaying each content delta as a
// message_delta event, accumulate content and tool calls, and release
// inference on done.
func (r *Runtime) streamCompletion(ctx context.Context, provider llm.Provider, messages []llm.Message, events chan<- Event) (string, []llm.ToolCall, error) {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanLLMRequest)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrModuleID, r.ModuleID))

	r.Models.AcquireForInference()
	defer r.Models.ReleaseFromInference()

	chunks, err := provider.GenerateStreaming(ctx, messages, llm.Options{Tools: r.toolDefinitions()})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errs.ErrProviderStream, err)
	}

	var content strings.Builder
	var toolCalls []llm.ToolCall

	for chunk := range chunks {
		switch chunk.Type {
		case llm.ChunkContent:
			content.WriteString(chunk.Content)
			events <- Event{Kind: EventMessageDelta, Delta: chunk.Content}
		case llm.ChunkToolCall:
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
		case llm.ChunkError:
			return "", nil, fmt.Errorf("%w: %v", errs.ErrProviderStream, chunk.Err)
		case llm.ChunkDone:
		}
	}

	return content.String(), toolCalls, nil
}

func (r *Runtime) toolDefinitions() []llm.ToolDefinition {
	if r.Tools == nil {
		return nil
	}
	return r.Tools.Definitions()
}

// dispatchToolCalls implements step 5(f): emit tool_use, run the
// approval gate when required, execute, append the full result to
// history, and emit a display-truncated tool_result.
func (r *Runtime) dispatchToolCalls(ctx context.Context, sess *Session, toolCalls []llm.ToolCall, events chan<- Event) error {
	for _, call := range toolCalls {
		args := parseArguments(call.Function.Arguments)
		events <- Event{Kind: EventToolUse, Tool: call.Function.Name, Arguments: args}

		result, err := r.runOneTool(ctx, call.Function.Name, args, events)
		if err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"success":  result.Success,
			"content":  result.Content,
			"error":    result.Error,
			"metadata": result.Metadata,
		})
		sess.appendMessage(llm.Message{
			Role:       "tool",
			Content:    string(payload),
			ToolCallID: call.ID,
			Name:       call.Function.Name,
		})

		display := result.Content
		if !result.Success {
			display = result.Error
		}
		events <- Event{
			Kind:   EventToolResult,
			Tool:   call.Function.Name,
			Result: truncateForDisplay(call.Function.Name, display),
		}
	}
	return nil
}

// runOneTool resolves approval (policy auto-approve/deny, or an
// approval_request/approval_response round trip) and executes the
// tool, or synthesizes a denial result without ever calling Execute.
func (r *Runtime) runOneTool(ctx context.Context, name string, args map[string]any, events chan<- Event) (ToolResult, error) {
	tool, ok := r.Tools.Get(name)
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", name)}, nil
	}

	if tool.RequiresApproval() {
		approved, err := r.resolveApproval(ctx, tool, args, events)
		if err != nil {
			return ToolResult{}, err
		}
		if !approved {
			return ToolResult{Success: false, Error: "denied"}, nil
		}
	}

	ctx, span := observability.Tracer().Start(ctx, observability.SpanToolExecution)
	span.SetAttributes(attribute.String(observability.AttrToolName, name))
	result, err := tool.Execute(ctx, args)
	span.End()
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return result, nil
}

func (r *Runtime) resolveApproval(ctx context.Context, tool Tool, args map[string]any, events chan<- Event) (bool, error) {
	switch EvaluatePolicy(r.Policy, tool.Name()) {
	case DecisionAutoApprove:
		return true, nil
	case DecisionAutoDeny:
		return false, nil
	default:
		if r.Approval == nil {
			return false, nil
		}
		requestID := uuid.NewString()
		argsJSON, _ := json.Marshal(args)
		prompt := fmt.Sprintf("Approve call to %s with arguments %s?", tool.Name(), string(argsJSON))
		events <- Event{Kind: EventApprovalRequest, RequestID: requestID, Tool: tool.Name(), Prompt: prompt}
		return r.Approval.RequestApproval(ctx, requestID, tool.Name(), prompt)
	}
}

func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

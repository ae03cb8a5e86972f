package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/modelmanager"
)

// scriptedProvider replays one StreamChunk sequence per call, so a
// test can drive a turn through a fixed number of iterations.
type scriptedProvider struct {
	calls    int
	sequence [][]llm.StreamChunk
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	return &llm.Response{Content: "unused"}, nil
}

func (p *scriptedProvider) GenerateStreaming(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	idx := p.calls
	if idx >= len(p.sequence) {
		idx = len(p.sequence) - 1
	}
	p.calls++
	chunks := p.sequence[idx]
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ModelName() string    { return "scripted" }
func (p *scriptedProvider) MaxTokens() int       { return 4096 }
func (p *scriptedProvider) Temperature() float64 { return 0.2 }
func (p *scriptedProvider) Close() error         { return nil }

func managerWith(provider llm.Provider) *modelmanager.Manager {
	mgr := modelmanager.NewManager(func(config.LLMConfig) (llm.Provider, error) {
		return provider, nil
	})
	_ = mgr.SwitchModel(context.Background(), config.LLMConfig{Provider: config.LLMProviderOllama, Model: "scripted", BaseURL: "http://x"})
	return mgr
}

func drain(events chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestRunTurnReturnsFinalMessageWithNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{sequence: [][]llm.StreamChunk{
		{
			{Type: llm.ChunkContent, Content: "hello "},
			{Type: llm.ChunkContent, Content: "world"},
			{Type: llm.ChunkDone},
		},
	}}
	rt := &Runtime{ModuleID: "m1", Models: managerWith(provider), Tools: NewToolRegistry()}
	sess := NewSession()
	events := make(chan Event, 10)

	err := rt.RunTurn(context.Background(), sess, "hi", events)
	close(events)
	require.NoError(t, err)

	got := drain(events)
	var final *Event
	for i := range got {
		if got[i].Kind == EventMessageFinal {
			final = &got[i]
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, "hello world", final.Message)
	assert.Equal(t, true, final.Metadata["success"])

	history := sess.messages()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "hello world", history[1].Content)
}

type echoTool struct {
	approval bool
}

func (t *echoTool) Name() string              { return "echo" }
func (t *echoTool) Description() string       { return "echoes its input argument" }
func (t *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *echoTool) RequiresApproval() bool     { return t.approval }
func (t *echoTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	return ToolResult{Success: true, Content: "echoed"}, nil
}

func TestRunTurnExecutesToolCallThenFinishes(t *testing.T) {
	provider := &scriptedProvider{sequence: [][]llm.StreamChunk{
		{
			{Type: llm.ChunkToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Function: llm.FunctionCall{Name: "echo", Arguments: `{"text":"hi"}`}}},
			{Type: llm.ChunkDone},
		},
		{
			{Type: llm.ChunkContent, Content: "done"},
			{Type: llm.ChunkDone},
		},
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{})
	rt := &Runtime{ModuleID: "m1", Models: managerWith(provider), Tools: tools}
	sess := NewSession()
	events := make(chan Event, 20)

	err := rt.RunTurn(context.Background(), sess, "run echo", events)
	close(events)
	require.NoError(t, err)

	got := drain(events)
	var sawToolUse, sawToolResult, sawFinal bool
	for _, e := range got {
		switch e.Kind {
		case EventToolUse:
			sawToolUse = true
			assert.Equal(t, "echo", e.Tool)
		case EventToolResult:
			sawToolResult = true
			assert.Equal(t, "echoed", e.Result)
		case EventMessageFinal:
			sawFinal = true
			assert.Equal(t, "done", e.Message)
		}
	}
	assert.True(t, sawToolUse)
	assert.True(t, sawToolResult)
	assert.True(t, sawFinal)

	history := sess.messages()
	require.Len(t, history, 4)
	assert.Equal(t, "tool", history[2].Role)
	assert.Equal(t, "echo", history[2].Name)
}

type denyingGate struct{}

func (denyingGate) RequestApproval(ctx context.Context, requestID, toolName, prompt string) (bool, error) {
	return false, nil
}

func TestRunTurnDeniedApprovalSynthesizesFailure(t *testing.T) {
	provider := &scriptedProvider{sequence: [][]llm.StreamChunk{
		{
			{Type: llm.ChunkToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Function: llm.FunctionCall{Name: "echo", Arguments: `{}`}}},
			{Type: llm.ChunkDone},
		},
		{
			{Type: llm.ChunkContent, Content: "ok"},
			{Type: llm.ChunkDone},
		},
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{approval: true})
	policy := &config.WorkspacePolicy{ID: "p", Root: "/tmp", CommandApproval: config.CommandApprovalPrompt}
	rt := &Runtime{ModuleID: "m1", Models: managerWith(provider), Tools: tools, Policy: policy, Approval: denyingGate{}}
	sess := NewSession()
	events := make(chan Event, 20)

	err := rt.RunTurn(context.Background(), sess, "run echo", events)
	close(events)
	require.NoError(t, err)

	got := drain(events)
	var sawApprovalRequest bool
	var toolResult string
	for _, e := range got {
		if e.Kind == EventApprovalRequest {
			sawApprovalRequest = true
		}
		if e.Kind == EventToolResult {
			toolResult = e.Result
		}
	}
	assert.True(t, sawApprovalRequest)
	assert.Equal(t, "denied", toolResult)
}

func TestRunTurnStopsAtIterationCapWithoutToolResolution(t *testing.T) {
	loop := []llm.StreamChunk{
		{Type: llm.ChunkToolCall, ToolCall: &llm.ToolCall{ID: "call-1", Function: llm.FunctionCall{Name: "echo", Arguments: `{}`}}},
		{Type: llm.ChunkDone},
	}
	sequence := make([][]llm.StreamChunk, 0)
	for i := 0; i < 3; i++ {
		sequence = append(sequence, loop)
	}
	tools := NewToolRegistry()
	tools.Register(&echoTool{})
	provider := &scriptedProvider{sequence: sequence}
	rt := &Runtime{ModuleID: "m1", Models: managerWith(provider), Tools: tools, MaxIterations: 2}
	sess := NewSession()
	events := make(chan Event, 50)

	err := rt.RunTurn(context.Background(), sess, "loop forever", events)
	close(events)
	require.NoError(t, err)

	got := drain(events)
	var final *Event
	for i := range got {
		if got[i].Kind == EventMessageFinal {
			final = &got[i]
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, false, final.Metadata["success"])
	assert.Equal(t, true, final.Metadata["max_iterations_reached"])
}

func TestRunTurnNoModelLoadedReturnsError(t *testing.T) {
	mgr := modelmanager.NewManager(nil)
	rt := &Runtime{ModuleID: "m1", Models: mgr, Tools: NewToolRegistry()}
	sess := NewSession()
	events := make(chan Event, 5)

	err := rt.RunTurn(context.Background(), sess, "hi", events)
	close(events)
	assert.Error(t, err)
}

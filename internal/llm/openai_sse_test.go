package llm

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestDecodeOpenAISSEContentAndDone(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	out := make(chan StreamChunk, 16)
	decodeOpenAISSE(nopCloser{strings.NewReader(stream)}, out)

	var content string
	var sawDone bool
	for c := range out {
		switch c.Type {
		case ChunkContent:
			content += c.Content
		case ChunkDone:
			sawDone = true
		}
	}
	assert.Equal(t, "Hello", content)
	assert.True(t, sawDone)
}

func sseLine(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return "data: " + string(b)
}

func TestDecodeOpenAISSEAccumulatesToolCallFragments(t *testing.T) {
	type delta struct {
		ToolCalls []openAIToolCallDelta `json:"tool_calls,omitempty"`
	}
	type choice struct {
		Delta        delta   `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	}
	type frame struct {
		Choices []choice `json:"choices"`
	}

	finish := "tool_calls"
	lines := []string{
		sseLine(t, frame{Choices: []choice{{Delta: delta{ToolCalls: []openAIToolCallDelta{
			{Index: 0, ID: "call_1", Function: struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			}{Name: "read_fil", Arguments: ""}},
		}}}}}),
		sseLine(t, frame{Choices: []choice{{Delta: delta{ToolCalls: []openAIToolCallDelta{
			{Index: 0, Function: struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			}{Name: "e", Arguments: `{"path":`}},
		}}}}}),
		sseLine(t, frame{Choices: []choice{{Delta: delta{ToolCalls: []openAIToolCallDelta{
			{Index: 0, Function: struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			}{Arguments: `"a.go"}`}},
		}}}}}),
		sseLine(t, frame{Choices: []choice{{Delta: delta{}, FinishReason: &finish}}}),
		"data: [DONE]",
		"",
	}
	stream := strings.Join(lines, "\n")

	out := make(chan StreamChunk, 16)
	decodeOpenAISSE(nopCloser{strings.NewReader(stream)}, out)

	var calls []ToolCall
	for c := range out {
		if c.Type == ChunkToolCall {
			calls = append(calls, *c.ToolCall)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Function.Name)
	assert.Equal(t, `{"path":"a.go"}`, calls[0].Function.Arguments)
}

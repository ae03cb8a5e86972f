package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/errs"
)

// openAIChatRequest is the OpenAI-chat-compatible request body shared
// by the vLLM and llama.cpp backends.
type openAIChatRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []Message        `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
}

type openAIToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChatChunk struct {
	Choices []struct {
		Delta struct {
			Content   string                 `json:"content"`
			ToolCalls []openAIToolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// decodeOpenAISSE reads an OpenAI-compatible "data: {...}"/"data: [DONE]"
// server-sent-event stream from body, emitting content chunks as they
// arrive and accumulating partial tool-call argument fragments by
// index until the stream reports a finish_reason or [DONE], at which
// point it flushes the completed tool calls followed by a ChunkDone.
// Shared by the vLLM and llama.cpp adapters, grounded on llm_client.py's
// _vllm_stream/_llamacpp_stream (both OpenAI-SSE, differing only in
// request shape).
func decodeOpenAISSE(body io.ReadCloser, out chan<- StreamChunk) {
	defer body.Close()
	defer close(out)

	pending := map[int]*ToolCall{}
	order := []int{}

	flush := func() {
		sort.Ints(order)
		for _, idx := range order {
			if tc := pending[idx]; tc != nil {
				out <- StreamChunk{Type: ChunkToolCall, ToolCall: tc}
			}
		}
		pending = map[int]*ToolCall{}
		order = nil
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			flush()
			out <- StreamChunk{Type: ChunkDone}
			return
		}

		var chunk openAIChatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			out <- StreamChunk{Type: ChunkContent, Content: choice.Delta.Content}
		}

		for _, tcd := range choice.Delta.ToolCalls {
			tc, ok := pending[tcd.Index]
			if !ok {
				tc = &ToolCall{Type: "function"}
				pending[tcd.Index] = tc
				order = append(order, tcd.Index)
			}
			if tcd.ID != "" {
				tc.ID = tcd.ID
			}
			if tcd.Function.Name != "" {
				tc.Function.Name += tcd.Function.Name
			}
			tc.Function.Arguments += tcd.Function.Arguments
		}

		if choice.FinishReason != nil {
			flush()
			out <- StreamChunk{Type: ChunkDone, Metadata: map[string]any{"finish_reason": *choice.FinishReason}}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- StreamChunk{Type: ChunkError, Err: fmt.Errorf("%w: %v", errs.ErrProviderStream, err)}
	}
}

func marshalOpenAIRequest(req openAIChatRequest) ([]byte, error) {
	return json.Marshal(req)
}

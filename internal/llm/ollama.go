package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
	"github.com/KhaineVulpana/loco-core/internal/observability"
)

// OllamaProvider talks to Ollama's native /api/chat endpoint. Streaming
// and tool-call-recovery semantics are ported from llm_client.py's
// _ollama_stream; the goroutine+channel shape is ported from hector's
// pkg/llms/ollama.go GenerateStreaming.
type OllamaProvider struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOllamaProvider constructs an OllamaProvider for cfg.
func NewOllamaProvider(cfg config.LLMConfig, client *http.Client) *OllamaProvider {
	return &OllamaProvider{cfg: cfg, client: client}
}

func (p *OllamaProvider) ModelName() string     { return p.cfg.Model }
func (p *OllamaProvider) MaxTokens() int         { return 0 }
func (p *OllamaProvider) Temperature() float64   { return p.cfg.Temperature }
func (p *OllamaProvider) Close() error           { return nil }

type ollamaMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []ollamaMessage  `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  ollamaOptions    `json:"options"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Format   string           `json:"format,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration"`
	LoadDuration    int64         `json:"load_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (p *OllamaProvider) buildRequest(messages []Message, opts Options, stream bool) ollamaChatRequest {
	req := ollamaChatRequest{
		Model:  p.cfg.Model,
		Stream: stream,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			NumCtx:      opts.ContextWindow,
		},
		Tools:  opts.Tools,
		Format: opts.ResponseFormat,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls})
	}
	return req
}

// Generate performs a non-streaming completion by draining the
// streaming path and accumulating its chunks.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	chunks, err := p.GenerateStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	for c := range chunks {
		switch c.Type {
		case ChunkContent:
			resp.Content += c.Content
		case ChunkToolCall:
			resp.ToolCalls = append(resp.ToolCalls, *c.ToolCall)
		case ChunkError:
			return nil, c.Err
		}
	}
	return resp, nil
}

// GenerateStreaming posts a streaming request to /api/chat and decodes
// newline-delimited JSON objects, emitting content chunks as they
// arrive, native tool calls as soon as seen, and — only if no native
// tool call appeared — any tool calls recovered from inline XML in the
// accumulated content once the stream reports done.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanLLMRequest)
	span.SetAttributes(
		attribute.String(observability.AttrProvider, string(config.LLMProviderOllama)),
		attribute.String(observability.AttrModelName, p.cfg.Model),
	)

	body, err := json.Marshal(p.buildRequest(messages, opts, true))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("llm: ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("llm: ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("%w: ollama: %v", errs.ErrProviderUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		httpResp.Body.Close()
		span.SetStatus(codes.Error, httpResp.Status)
		span.End()
		return nil, fmt.Errorf("%w: ollama: status %s", errs.ErrProviderUnavailable, httpResp.Status)
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer span.End()
		defer httpResp.Body.Close()
		defer close(out)

		var accumulated bytes.Buffer
		hasNativeToolCalls := false

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}

			if chunk.Message.Content != "" {
				accumulated.WriteString(chunk.Message.Content)
				out <- StreamChunk{Type: ChunkContent, Content: chunk.Message.Content}
			}
			for i := range chunk.Message.ToolCalls {
				hasNativeToolCalls = true
				tc := chunk.Message.ToolCalls[i]
				out <- StreamChunk{Type: ChunkToolCall, ToolCall: &tc}
			}

			if chunk.Done {
				if accumulated.Len() > 0 && !hasNativeToolCalls {
					_, recovered := ParseXMLToolCalls(accumulated.String())
					for i := range recovered {
						out <- StreamChunk{Type: ChunkToolCall, ToolCall: &recovered[i]}
					}
				}
				out <- StreamChunk{Type: ChunkDone, Metadata: map[string]any{
					"total_duration":   chunk.TotalDuration,
					"load_duration":    chunk.LoadDuration,
					"prompt_eval_count": chunk.PromptEvalCount,
					"eval_count":       chunk.EvalCount,
				}}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			out <- StreamChunk{Type: ChunkError, Err: fmt.Errorf("%w: ollama: %v", errs.ErrProviderStream, err)}
		}
	}()

	return out, nil
}

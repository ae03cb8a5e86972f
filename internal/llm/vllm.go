package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
	"github.com/KhaineVulpana/loco-core/internal/observability"
)

// VLLMProvider talks to a vLLM OpenAI-compatible /v1/chat/completions
// endpoint. Ported from llm_client.py's _vllm_stream.
type VLLMProvider struct {
	cfg    config.LLMConfig
	client *http.Client
}

func NewVLLMProvider(cfg config.LLMConfig, client *http.Client) *VLLMProvider {
	return &VLLMProvider{cfg: cfg, client: client}
}

func (p *VLLMProvider) ModelName() string   { return p.cfg.Model }
func (p *VLLMProvider) MaxTokens() int       { return 0 }
func (p *VLLMProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *VLLMProvider) Close() error         { return nil }

func (p *VLLMProvider) Generate(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	chunks, err := p.GenerateStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return drainToResponse(chunks)
}

func (p *VLLMProvider) GenerateStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	return streamOpenAICompatible(ctx, p.client, p.cfg.BaseURL+"/v1/chat/completions", openAIChatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Tools:       opts.Tools,
		ToolChoice:  toolChoiceFor(opts.Tools),
	}, config.LLMProviderVLLM, p.cfg.Model)
}

func toolChoiceFor(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}
	return "auto"
}

// streamOpenAICompatible issues the POST and wires the response body
// into decodeOpenAISSE, shared by the vLLM and llama.cpp adapters.
func streamOpenAICompatible(ctx context.Context, client *http.Client, url string, req openAIChatRequest, provider config.LLMProvider, model string) (<-chan StreamChunk, error) {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanLLMRequest)
	span.SetAttributes(
		attribute.String(observability.AttrProvider, string(provider)),
		attribute.String(observability.AttrModelName, model),
	)

	body, err := marshalOpenAIRequest(req)
	if err != nil {
		span.End()
		return nil, fmt.Errorf("llm: %s: marshal request: %w", provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("llm: %s: build request: %w", provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrProviderUnavailable, provider, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		httpResp.Body.Close()
		span.SetStatus(codes.Error, httpResp.Status)
		span.End()
		return nil, fmt.Errorf("%w: %s: status %s", errs.ErrProviderUnavailable, provider, httpResp.Status)
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer span.End()
		decodeOpenAISSE(httpResp.Body, out)
	}()
	return out, nil
}

func drainToResponse(chunks <-chan StreamChunk) (*Response, error) {
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

package llm

import (
	"context"
	"net/http"

	"github.com/KhaineVulpana/loco-core/internal/config"
)

// LlamaCPPProvider talks to llama.cpp's OpenAI-compatible server. Near
// identical to VLLMProvider except the request omits "model" and
// "tool_choice", matching llm_client.py's _llamacpp_stream.
type LlamaCPPProvider struct {
	cfg    config.LLMConfig
	client *http.Client
}

func NewLlamaCPPProvider(cfg config.LLMConfig, client *http.Client) *LlamaCPPProvider {
	return &LlamaCPPProvider{cfg: cfg, client: client}
}

func (p *LlamaCPPProvider) ModelName() string   { return p.cfg.Model }
func (p *LlamaCPPProvider) MaxTokens() int       { return 0 }
func (p *LlamaCPPProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *LlamaCPPProvider) Close() error         { return nil }

func (p *LlamaCPPProvider) Generate(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	chunks, err := p.GenerateStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return drainToResponse(chunks)
}

func (p *LlamaCPPProvider) GenerateStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	return streamOpenAICompatible(ctx, p.client, p.cfg.BaseURL+"/v1/chat/completions", openAIChatRequest{
		Messages:    messages,
		Stream:      true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Tools:       opts.Tools,
	}, config.LLMProviderLlamaCPP, p.cfg.Model)
}

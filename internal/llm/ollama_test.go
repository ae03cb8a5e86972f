package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/config"
)

func TestOllamaGenerateStreamingRecoversXMLToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"message":{"role":"assistant","content":"Looking... "},"done":false}`,
			`{"message":{"role":"assistant","content":"<function=read_file><parameter=path>a.go</parameter></function>"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"total_duration":100,"eval_count":5}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	}))
	defer server.Close()

	p := NewOllamaProvider(config.LLMConfig{Model: "qwen2.5-coder", BaseURL: server.URL}, server.Client())

	chunks, err := p.GenerateStreaming(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)

	var content string
	var toolCalls []ToolCall
	var sawDone bool
	for c := range chunks {
		switch c.Type {
		case ChunkContent:
			content += c.Content
		case ChunkToolCall:
			toolCalls = append(toolCalls, *c.ToolCall)
		case ChunkDone:
			sawDone = true
		}
	}

	assert.Contains(t, content, "Looking...")
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "read_file", toolCalls[0].Function.Name)
	assert.True(t, sawDone)
}

func TestOllamaGenerateStreamingPrefersNativeToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_0","type":"function","function":{"name":"list_files","arguments":"{}"}}]},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	}))
	defer server.Close()

	p := NewOllamaProvider(config.LLMConfig{Model: "m", BaseURL: server.URL}, server.Client())
	chunks, err := p.GenerateStreaming(context.Background(), nil, Options{})
	require.NoError(t, err)

	var toolCalls []ToolCall
	for c := range chunks {
		if c.Type == ChunkToolCall {
			toolCalls = append(toolCalls, *c.ToolCall)
		}
	}
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "list_files", toolCalls[0].Function.Name)
}

func TestOllamaGenerateStreamingProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOllamaProvider(config.LLMConfig{Model: "m", BaseURL: server.URL}, server.Client())
	_, err := p.GenerateStreaming(context.Background(), nil, Options{})
	assert.Error(t, err)
}

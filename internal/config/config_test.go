package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
active_model: local
llm_models:
  local:
    provider: ollama
    model: qwen2.5-coder
    base_url: http://localhost:11434
vector_store:
  host: localhost
  port: 6334
embedder:
  base_url: http://localhost:11435
  model: nomic-embed-text
modules:
  - vscode
workspaces:
  ws1:
    root: /tmp/ws1
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", cfg.Server.BindAddr)
	assert.Equal(t, 8192, cfg.LLMModels["local"].ContextWindow)
	assert.InDelta(t, 0.7, cfg.LLMModels["local"].Temperature, 0.0001)
	assert.Equal(t, 600, cfg.LLMModels["local"].RequestTimeout)
	assert.Equal(t, 0.85, cfg.ACE.DedupThreshold)
	assert.Equal(t, int64(10*1024*1024), cfg.Workspaces["ws1"].MaxFileBytes)
}

func TestLoadRejectsUnknownActiveModel(t *testing.T) {
	path := writeTempConfig(t, strings.Replace(minimalYAML, "active_model: local", "active_model: does-not-exist", 1))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingModels(t *testing.T) {
	path := writeTempConfig(t, `
vector_store:
  host: localhost
  port: 6334
embedder:
  base_url: http://localhost:11435
  model: nomic-embed-text
modules:
  - vscode
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrideAppliesOnTopOfYAML(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	t.Setenv("LOCO_SERVER_BIND_ADDR", "0.0.0.0:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.BindAddr)
}

func TestLLMConfigValidateRejectsBadProvider(t *testing.T) {
	c := LLMConfig{Provider: "bogus", Model: "m", BaseURL: "http://x"}
	assert.Error(t, c.Validate())
}

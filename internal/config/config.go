// Package config loads and validates the process configuration.
// Grounded on hector's pkg/config (YAML-tagged structs with SetDefaults
// and Validate methods); the environment-variable overlay step is
// adapted from the same package's use of mapstructure to decode loosely
// typed overrides onto the YAML-decoded struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LLMProvider identifies which wire protocol an LLM backend speaks.
type LLMProvider string

const (
	LLMProviderOllama   LLMProvider = "ollama"
	LLMProviderVLLM     LLMProvider = "vllm"
	LLMProviderLlamaCPP LLMProvider = "llamacpp"
)

// LLMConfig configures one named model backend. Multiple named entries
// let the model manager switch between them at runtime (spec.md C2).
type LLMConfig struct {
	Provider       LLMProvider `yaml:"provider" mapstructure:"provider"`
	Model          string      `yaml:"model" mapstructure:"model"`
	BaseURL        string      `yaml:"base_url" mapstructure:"base_url"`
	ContextWindow  int         `yaml:"context_window" mapstructure:"context_window"`
	Temperature    float64     `yaml:"temperature" mapstructure:"temperature"`
	RequestTimeout int         `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

// SetDefaults fills unset fields with the same values the original
// service uses (llm_client.py's DEFAULT_LLM_TIMEOUT, model_manager.py's
// ModelConfig context_window/temperature defaults).
func (c *LLMConfig) SetDefaults() {
	if c.ContextWindow == 0 {
		c.ContextWindow = 8192
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 600
	}
}

// Validate checks an LLMConfig for internal consistency.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOllama, LLMProviderVLLM, LLMProviderLlamaCPP:
	default:
		return fmt.Errorf("config: invalid llm provider %q (valid: ollama, vllm, llamacpp)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("config: llm model is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: llm base_url is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config: llm temperature must be between 0 and 2")
	}
	return nil
}

// VectorStoreConfig configures the Qdrant connection.
type VectorStoreConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

func (c *VectorStoreConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: vector_store host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: vector_store port must be positive")
	}
	return nil
}

// EmbedderConfig configures the embedding HTTP endpoint.
type EmbedderConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Dimensions == 0 {
		c.Dimensions = 768
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: embedder base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("config: embedder model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("config: embedder dimensions must be positive")
	}
	return nil
}

// CommandApprovalMode controls whether an agent session may run shell
// commands without a human-in-the-loop round trip (spec.md §6 policy
// enforcement).
type CommandApprovalMode string

const (
	CommandApprovalAlways CommandApprovalMode = "always"
	CommandApprovalNever  CommandApprovalMode = "never"
	CommandApprovalPrompt CommandApprovalMode = "prompt"
)

// WorkspacePolicy bounds what an agent session may do inside one
// workspace root (spec.md §6 policy enforcement, §3 workspace policy).
type WorkspacePolicy struct {
	ID                string              `yaml:"id" mapstructure:"id"`
	Root              string              `yaml:"root" mapstructure:"root"`
	AllowedCommands   []string            `yaml:"allowed_commands" mapstructure:"allowed_commands"`
	DeniedCommands    []string            `yaml:"denied_commands" mapstructure:"denied_commands"`
	AllowedReadGlobs  []string            `yaml:"allowed_read_globs" mapstructure:"allowed_read_globs"`
	DeniedReadGlobs   []string            `yaml:"denied_read_globs" mapstructure:"denied_read_globs"`
	AllowedWriteGlobs []string            `yaml:"allowed_write_globs" mapstructure:"allowed_write_globs"`
	DeniedWriteGlobs  []string            `yaml:"denied_write_globs" mapstructure:"denied_write_globs"`
	DeniedGlobs       []string            `yaml:"denied_globs" mapstructure:"denied_globs"`
	MaxFileBytes      int64               `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	RequireApproval   bool                `yaml:"require_approval" mapstructure:"require_approval"`
	CommandApproval   CommandApprovalMode `yaml:"command_approval" mapstructure:"command_approval"`
	AutoApproveTools  []string            `yaml:"auto_approve_tools" mapstructure:"auto_approve_tools"`
	NetworkEnabled    bool                `yaml:"network_enabled" mapstructure:"network_enabled"`
}

func (p *WorkspacePolicy) SetDefaults() {
	if p.MaxFileBytes == 0 {
		p.MaxFileBytes = 10 * 1024 * 1024
	}
	if p.CommandApproval == "" {
		p.CommandApproval = CommandApprovalPrompt
	}
}

func (p *WorkspacePolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("config: workspace policy id is required")
	}
	if p.Root == "" {
		return fmt.Errorf("config: workspace policy %q: root is required", p.ID)
	}
	return nil
}

// ACEConfig tunes the playbook curator/reflector loop (spec.md §4.8).
type ACEConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	DedupThreshold    float64 `yaml:"dedup_threshold" mapstructure:"dedup_threshold"`
	PruneThreshold    int     `yaml:"prune_harmful_threshold" mapstructure:"prune_harmful_threshold"`
	MaxRefineRounds   int     `yaml:"max_refine_rounds" mapstructure:"max_refine_rounds"`
	GrowAndRefineSize int     `yaml:"grow_and_refine_size" mapstructure:"grow_and_refine_size"`
}

func (c *ACEConfig) SetDefaults() {
	if c.DedupThreshold == 0 {
		c.DedupThreshold = 0.85
	}
	if c.PruneThreshold == 0 {
		c.PruneThreshold = 3
	}
	if c.MaxRefineRounds == 0 {
		c.MaxRefineRounds = 5
	}
	if c.GrowAndRefineSize == 0 {
		c.GrowAndRefineSize = 50
	}
}

// ServerConfig configures the process' network surface.
type ServerConfig struct {
	BindAddr string `yaml:"bind_addr" mapstructure:"bind_addr"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

func (c *ServerConfig) SetDefaults() {
	if c.BindAddr == "" {
		c.BindAddr = "127.0.0.1:8787"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Config is the top-level process configuration.
type Config struct {
	Server      ServerConfig               `yaml:"server" mapstructure:"server"`
	LLMModels   map[string]LLMConfig       `yaml:"llm_models" mapstructure:"llm_models"`
	ActiveModel string                     `yaml:"active_model" mapstructure:"active_model"`
	VectorStore VectorStoreConfig          `yaml:"vector_store" mapstructure:"vector_store"`
	Embedder    EmbedderConfig             `yaml:"embedder" mapstructure:"embedder"`
	Modules     []string                   `yaml:"modules" mapstructure:"modules"`
	Workspaces  map[string]WorkspacePolicy `yaml:"workspaces" mapstructure:"workspaces"`
	ACE         ACEConfig                  `yaml:"ace" mapstructure:"ace"`
}

// SetDefaults fills every nested section's defaults.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Embedder.SetDefaults()
	c.ACE.SetDefaults()
	for name, m := range c.LLMModels {
		m.SetDefaults()
		c.LLMModels[name] = m
	}
	for id, w := range c.Workspaces {
		w.SetDefaults()
		c.Workspaces[id] = w
	}
}

// Validate checks the whole config tree, including cross-field
// invariants SetDefaults alone cannot fix (active_model must reference
// a configured model).
func (c *Config) Validate() error {
	if len(c.LLMModels) == 0 {
		return fmt.Errorf("config: at least one llm_models entry is required")
	}
	for name, m := range c.LLMModels {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("config: llm_models[%s]: %w", name, err)
		}
	}
	if c.ActiveModel != "" {
		if _, ok := c.LLMModels[c.ActiveModel]; !ok {
			return fmt.Errorf("config: active_model %q is not in llm_models", c.ActiveModel)
		}
	}
	if err := c.VectorStore.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("config: at least one module id is required")
	}
	for id, w := range c.Workspaces {
		if w.ID == "" {
			w.ID = id
		}
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a YAML file, applies any matching LOCO_-prefixed
// environment variable overrides, fills defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides decodes LOCO_-prefixed environment variables (e.g.
// LOCO_SERVER_BIND_ADDR) into a nested map keyed by the same yaml tags
// used on Config, then mapstructure-decodes that map onto cfg. A name
// that starts with a struct section (server, vector_store, embedder,
// ace) sets that section's field named by the rest (LOCO_SERVER_BIND_ADDR
// sets server.bind_addr); any other name sets the top-level key of the
// same name (LOCO_ACTIVE_MODEL). Entries of the map-valued sections
// (llm_models, workspaces) cannot be overridden this way. This mirrors
// the teacher's pattern of layering loosely-typed overrides on top of
// an already-decoded struct.
func applyEnvOverrides(cfg *Config) error {
	const prefix = "LOCO_"
	overrides := map[string]any{}

	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		path := []string{name}
		for _, section := range []string{"server", "vector_store", "embedder", "ace"} {
			if strings.HasPrefix(name, section+"_") {
				path = []string{section, strings.TrimPrefix(name, section+"_")}
				break
			}
		}
		setNested(overrides, path, val)
	}

	if len(overrides) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(overrides)
}

func setNested(m map[string]any, path []string, val string) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		m[path[0]] = coerce(val)
		return
	}
	next, ok := m[path[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		m[path[0]] = next
	}
	setNested(next, path[1:], val)
}

func coerce(val string) any {
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}

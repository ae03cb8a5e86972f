package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/registry"
)

// Registry holds named Provider instances, keyed by the config key
// under config.Config.LLMModels (not the model name itself, since two
// entries may share a model name with different base URLs).
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewRegistry[Provider]()}
}

// CreateFromConfig builds a Provider for one named LLMConfig entry,
// dispatching on its Provider field the way llm_client.py's
// generate_stream dispatches on the provider string.
func CreateFromConfig(cfg config.LLMConfig) (Provider, error) {
	client := &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}

	switch cfg.Provider {
	case config.LLMProviderOllama:
		return NewOllamaProvider(cfg, client), nil
	case config.LLMProviderVLLM:
		return NewVLLMProvider(cfg, client), nil
	case config.LLMProviderLlamaCPP:
		return NewLlamaCPPProvider(cfg, client), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

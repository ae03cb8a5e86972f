// Package modelmanager implements C2: a single-active-model manager
// that hot-swaps between configured LLM backends, refcounts in-flight
// inference so a swap never cuts one off mid-stream, and rolls back to
// the previous model if a swap fails.
//
// Ported from original_source's backend/app/core/model_manager.py,
// adapted from its asyncio singleton shape to a constructor-injected
// Go type: one *Manager per process, held by whatever wires up
// internal/agent, rather than a module-level singleton.
package modelmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// requestWaitTimeout bounds how long a switch waits for in-flight
// inference to drain before unloading the current model.
const requestWaitTimeout = 30 * time.Second

// unloadSettleDelay gives the backend time to release VRAM/RAM after
// unloading, before the next model is loaded.
const unloadSettleDelay = 2 * time.Second

// pollInterval is how often waitForRequestsToFinish re-checks the
// active request count.
const pollInterval = 500 * time.Millisecond

// ErrSwitchInProgress means a caller tried to read the current model
// mid-swap and should retry.
var ErrSwitchInProgress = errors.New("modelmanager: switch in progress")

// Unloader is implemented by providers that support releasing their
// loaded weights (Ollama). vLLM and llama.cpp servers manage their own
// process lifecycle and don't support this, mirroring model_manager.py
// catching NotImplementedError around unload_model.
type Unloader interface {
	Unload(ctx context.Context) error
}

// ProviderFactory constructs a llm.Provider for one named config entry.
// Injected so tests can swap in a fake without a real HTTP backend.
type ProviderFactory func(config.LLMConfig) (llm.Provider, error)

// ModelConfig identifies one loadable model, independent of the
// config.LLMConfig it was built from (so a switch can compare "is this
// already loaded" without config-struct equality pitfalls).
type ModelConfig struct {
	Provider config.LLMProvider
	Model    string
	BaseURL  string
}

// String renders "provider:model", matching ModelConfig.__str__.
func (c ModelConfig) String() string {
	return fmt.Sprintf("%s:%s", c.Provider, c.Model)
}

// DisplayName is an alias for String kept for parity with the Python
// get_display_name() accessor used in log lines and UI text.
func (c ModelConfig) DisplayName() string { return c.String() }

// Manager owns the single active model and serializes switches.
type Manager struct {
	newProvider ProviderFactory
	logger      *slog.Logger

	switchMu sync.Mutex

	reqMu          sync.Mutex
	activeRequests int

	mu         sync.RWMutex
	current    llm.Provider
	currentCfg *ModelConfig
}

// NewManager constructs a Manager with no model loaded.
func NewManager(newProvider ProviderFactory) *Manager {
	return &Manager{newProvider: newProvider, logger: slog.Default()}
}

// AcquireForInference marks one inference call as in-flight, blocking a
// concurrent SwitchModel from unloading the current model out from
// under it. Pair with ReleaseFromInference in a defer.
func (m *Manager) AcquireForInference() {
	m.reqMu.Lock()
	m.activeRequests++
	m.reqMu.Unlock()
}

// ReleaseFromInference marks one inference call as finished.
func (m *Manager) ReleaseFromInference() {
	m.reqMu.Lock()
	if m.activeRequests > 0 {
		m.activeRequests--
	}
	m.reqMu.Unlock()
}

func (m *Manager) requestCount() int {
	m.reqMu.Lock()
	defer m.reqMu.Unlock()
	return m.activeRequests
}

// Current returns the active provider and its config. It returns
// ErrSwitchInProgress-free nil/nil if no model has ever been loaded.
func (m *Manager) Current() (llm.Provider, *ModelConfig) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.currentCfg
}

func (m *Manager) isSameModel(cfg ModelConfig) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentCfg != nil &&
		m.currentCfg.Provider == cfg.Provider &&
		m.currentCfg.Model == cfg.Model &&
		m.currentCfg.BaseURL == cfg.BaseURL
}

// SwitchModel loads llmCfg as the active model. If llmCfg names the
// model already loaded (same provider/model/base_url), this is a cheap
// no-op — context window and temperature changes don't force a reload,
// matching model_manager.py's _is_same_model comparison, which
// intentionally ignores those two fields. Otherwise it serializes on
// switchMu, waits up to 30s for in-flight inference to drain, unloads
// the current model (if supported), sleeps briefly to let the backend
// settle, loads and warms up the new one, and rolls back to the
// previous model on failure.
func (m *Manager) SwitchModel(ctx context.Context, llmCfg config.LLMConfig) error {
	target := ModelConfig{Provider: llmCfg.Provider, Model: llmCfg.Model, BaseURL: llmCfg.BaseURL}

	if m.isSameModel(target) {
		return nil
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	ctx, span := observability.Tracer().Start(ctx, observability.SpanModelSwitch)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrModelName, target.String()))

	previous, previousCfg := m.Current()

	if previous != nil {
		if err := m.unloadCurrent(ctx, previous); err != nil {
			m.logger.Warn("modelmanager: unload failed, continuing with switch", slog.String("error", err.Error()))
		}
		m.setCurrent(nil, nil)
		time.Sleep(unloadSettleDelay)
	}

	loaded, err := m.loadModel(ctx, llmCfg, target)
	if err != nil {
		if previousCfg != nil {
			m.logger.Warn("modelmanager: switch failed, rolling back", slog.String("target", target.String()))
			if rollbackCfg := configFromModel(llmCfg, *previousCfg); rollbackCfg != nil {
				if reloaded, rollbackErr := m.loadModel(ctx, *rollbackCfg, *previousCfg); rollbackErr == nil {
					m.setCurrent(reloaded, previousCfg)
				}
			}
		}
		return fmt.Errorf("modelmanager: model switch failed: %w", err)
	}

	m.setCurrent(loaded, &target)
	return nil
}

// configFromModel reconstructs a config.LLMConfig for a rollback
// target, reusing whatever tuning fields the caller's original request
// carried (context window, temperature, timeout) since ModelConfig
// itself only tracks provider/model/base_url identity.
func configFromModel(template config.LLMConfig, target ModelConfig) *config.LLMConfig {
	cfg := template
	cfg.Provider = target.Provider
	cfg.Model = target.Model
	cfg.BaseURL = target.BaseURL
	return &cfg
}

func (m *Manager) setCurrent(p llm.Provider, cfg *ModelConfig) {
	m.mu.Lock()
	m.current = p
	m.currentCfg = cfg
	m.mu.Unlock()
}

// unloadCurrent waits for in-flight requests to finish, then unloads p
// if it supports Unloader. A timeout waiting for requests, or a
// provider that doesn't implement Unloader, is logged and otherwise
// ignored — the switch proceeds regardless, matching model_manager.py
// swallowing NotImplementedError from vLLM/llama.cpp.
func (m *Manager) unloadCurrent(ctx context.Context, p llm.Provider) error {
	if err := m.waitForRequestsToFinish(ctx); err != nil {
		m.logger.Warn("modelmanager: proceeding with unload despite pending requests", slog.String("error", err.Error()))
	}

	unloader, ok := p.(Unloader)
	if !ok {
		return nil
	}
	return unloader.Unload(ctx)
}

// waitForRequestsToFinish polls the active request counter every
// pollInterval until it reaches zero or requestWaitTimeout elapses.
func (m *Manager) waitForRequestsToFinish(ctx context.Context) error {
	deadline := time.Now().Add(requestWaitTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for m.requestCount() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("modelmanager: timed out waiting for %d in-flight request(s)", m.requestCount())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// loadModel constructs a provider for llmCfg and performs a one-token
// warmup generation to force the backend to residency before declaring
// the switch complete.
func (m *Manager) loadModel(ctx context.Context, llmCfg config.LLMConfig, target ModelConfig) (llm.Provider, error) {
	provider, err := m.newProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("construct provider for %s: %w", target, err)
	}

	chunks, err := provider.GenerateStreaming(ctx, []llm.Message{{Role: "user", Content: "hi"}}, llm.Options{MaxTokens: 1})
	if err != nil {
		return nil, fmt.Errorf("warmup %s: %w", target, err)
	}
	for range chunks {
		break
	}
	// Drain any remaining chunks so the warmup goroutine doesn't block
	// forever on a full channel.
	go func() {
		for range chunks {
		}
	}()

	return provider, nil
}

// Shutdown unloads the current model, if one is loaded.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	current, _ := m.Current()
	if current == nil {
		return nil
	}
	err := m.unloadCurrent(ctx, current)
	m.setCurrent(nil, nil)
	return err
}

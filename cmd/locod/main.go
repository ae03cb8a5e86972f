// Command locod is the long-running server process spec.md §1
// describes: it loads the process config, wires up every module
// component (model manager, vector store, embedder, indexer, watcher,
// retriever, ACE playbook, agent runtime) per configured module and
// workspace, and serves WebSocket sessions over HTTP.
//
// Usage:
//
//	locod --config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KhaineVulpana/loco-core/internal/ace"
	"github.com/KhaineVulpana/loco-core/internal/agent"
	"github.com/KhaineVulpana/loco-core/internal/agent/tools"
	"github.com/KhaineVulpana/loco-core/internal/chunker"
	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/indexer"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/logger"
	"github.com/KhaineVulpana/loco-core/internal/modelmanager"
	"github.com/KhaineVulpana/loco-core/internal/observability"
	"github.com/KhaineVulpana/loco-core/internal/retriever"
	"github.com/KhaineVulpana/loco-core/internal/store"
	"github.com/KhaineVulpana/loco-core/internal/transport"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
	"github.com/KhaineVulpana/loco-core/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the process config file")
	dbPath := flag.String("db", "loco.db", "path to the relational SQLite database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.ParseLevel(cfg.Server.LogLevel), os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("locod: shutting down")
		cancel()
	}()

	if err := observability.Init(ctx, observability.Config{ServiceName: "locod"}); err != nil {
		log.Warn("locod: observability init failed", "err", err)
	}
	defer observability.Shutdown(context.Background())

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Error("locod: open store failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	models := modelmanager.NewManager(llm.CreateFromConfig)
	activeModel, ok := cfg.LLMModels[cfg.ActiveModel]
	if !ok {
		log.Error("locod: no active_model configured")
		os.Exit(1)
	}
	if err := models.SwitchModel(ctx, activeModel); err != nil {
		log.Error("locod: load active model failed", "err", err)
		os.Exit(1)
	}

	vstore, err := vectorstore.NewQdrantStore(cfg.VectorStore)
	if err != nil {
		log.Error("locod: connect vector store failed", "err", err)
		os.Exit(1)
	}

	baseEmbedder := embedder.NewHTTPEmbedder(cfg.Embedder, http.DefaultClient)
	cachedEmbedder := embedder.NewCachingEmbedder(baseEmbedder, db)

	// Every module/workspace pairing gets its own Server mounted at
	// /ws/<module>/<workspace>, since a transport.Server's Runtime
	// template is scoped to one pairing (retriever, playbook, and tool
	// registry are all workspace/module-specific).
	mux := http.NewServeMux()
	var servers []*transport.Server

	for _, moduleID := range cfg.Modules {
		for workspaceID, policy := range cfg.Workspaces {
			policy := policy

			fileIndexer := indexer.NewFileIndexer(chunker.NewDefaultChunker(), cachedEmbedder, vstore, db, db)

			stats, err := fileIndexer.IndexWorkspace(ctx, workspaceID, policy.Root)
			if err != nil {
				log.Warn("locod: initial index failed", "workspace", workspaceID, "err", err)
			} else {
				log.Info("locod: initial index complete", "workspace", workspaceID, "indexed", stats.Indexed, "skipped", stats.Skipped, "failed", stats.Failed)
			}

			w, err := watcher.New(watcher.Config{
				Root:   policy.Root,
				Filter: watcher.ExtensionFilter{Allowed: indexer.IndexableExtensions},
			})
			if err != nil {
				log.Warn("locod: start watcher failed", "workspace", workspaceID, "err", err)
			} else {
				events, err := w.Start(ctx)
				if err != nil {
					log.Warn("locod: watcher start failed", "workspace", workspaceID, "err", err)
				} else {
					go watchWorkspace(ctx, log, fileIndexer, workspaceID, policy.Root, events)
				}
			}

			rt := newModuleRuntime(moduleID, workspaceID, &policy, models, activeModel, vstore, cachedEmbedder, db, log)

			srv := transport.NewServer(rt, db, db, log)
			servers = append(servers, srv)
			path := fmt.Sprintf("/ws/%s/%s", moduleID, workspaceID)
			mux.Handle(path, srv)
			log.Info("locod: mounted session endpoint", "path", path)
		}
	}

	httpServer := &http.Server{Addr: cfg.Server.BindAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		for _, srv := range servers {
			srv.Shutdown()
		}
		_ = httpServer.Close()
	}()

	log.Info("locod: listening", "addr", cfg.Server.BindAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("locod: server error", "err", err)
		os.Exit(1)
	}
}

// newModuleRuntime assembles one module/workspace pairing's shared
// Runtime template: retriever (hybrid vector+symbol+text search over
// db), ACE playbook loaded from the module's ACE bullet collection
// (ace.Collection), the workspace-scoped tool registry, and the learner that
// runs the post-turn reflect/curate loop when ACE is enabled.
func newModuleRuntime(
	moduleID, workspaceID string,
	policy *config.WorkspacePolicy,
	models *modelmanager.Manager,
	activeModel config.LLMConfig,
	vstore vectorstore.Store,
	emb embedder.Embedder,
	db *store.Store,
	log *slog.Logger,
) *agent.Runtime {
	ctx := context.Background()

	retr := retriever.New(emb, vstore, db, db, db)

	rt := &agent.Runtime{
		ModuleID:    moduleID,
		WorkspaceID: workspaceID,
		Models:      models,
		LLMConfig:   activeModel,
		Retriever:   retr,
		Tools:       tools.NewRegistry(policy),
		Policy:      policy,
		Prompts:     agent.DefaultModulePrompts(),
		Logger:      log,
	}

	playbook, err := ace.LoadFromVectorDB(ctx, vstore, ace.Collection(moduleID), 0)
	if err != nil {
		log.Warn("locod: load playbook failed", "module", moduleID, "err", err)
		playbook = ace.NewPlaybook()
	}
	rt.Playbook = playbook

	if provider, _ := models.Current(); provider != nil {
		rt.Learner = &agent.Learner{
			Reflector:  ace.NewReflector(provider),
			Curator:    ace.NewCurator(provider),
			Playbook:   playbook,
			Embedder:   emb,
			Store:      vstore,
			Collection: ace.Collection(moduleID),
			Logger:     log,
		}
	}

	return rt
}

// watchWorkspace drains the watcher's debounced event stream and keeps
// the index in sync with the filesystem, matching the original file
// watcher's index-on-upsert/remove-on-delete contract.
func watchWorkspace(ctx context.Context, log *slog.Logger, idx *indexer.FileIndexer, workspaceID, root string, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case watcher.EventUpsert:
				if _, err := idx.IndexFile(ctx, workspaceID, root, ev.RelPath); err != nil {
					log.Warn("locod: reindex failed", "workspace", workspaceID, "path", ev.RelPath, "err", err)
				}
			case watcher.EventDelete:
				if err := idx.RemoveFile(ctx, workspaceID, ev.RelPath); err != nil {
					log.Warn("locod: remove failed", "workspace", workspaceID, "path", ev.RelPath, "err", err)
				}
			}
		}
	}
}

// Package retriever implements C7: knowledge/workspace/ACE-bullet
// retrieval over the vector store, hybrid merge-and-rerank for
// workspace search, and a token-budgeted context packer.
//
// Grounded on original_source's backend/app/retrieval/retriever.py
// (collection naming, hybrid fan-out, merge-by-key, lexical rerank,
// context packing) and hector's pkg/utils/tokens.go (tiktoken-backed
// counting with a chars/4 fallback).
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/indexer"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

// Result is one retrieved item, regardless of which leg (vector,
// symbol, text) produced it.
type Result struct {
	Score    float32
	Content  string
	Source   string
	Metadata map[string]any
}

// SymbolSearcher performs the SQL LIKE symbol-name/qualified-name leg
// of hybrid workspace retrieval. Implemented by internal/store.
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, workspaceID string, term string, limit int) ([]Result, error)
}

// TextSearcher performs the SQL LIKE chunk-content fallback leg of
// hybrid workspace retrieval, used when ripgrep isn't available on
// PATH or the workspace has no filesystem root configured.
// Implemented by internal/store.
type TextSearcher interface {
	SearchText(ctx context.Context, workspaceID, query string, limit int, useRegex bool) ([]Result, error)
}

// ChunkHydrator fetches chunk content and file path by vector id, so
// workspace vector search results (whose vector-store payload doesn't
// carry content — see internal/indexer) can be filled in from the
// relational store. Implemented by internal/store.
type ChunkHydrator interface {
	HydrateChunks(ctx context.Context, vectorIDs []string) (content map[string]string, source map[string]string, err error)
}

var identifierTermRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{2,}`)

// Retriever answers knowledge, workspace, and ACE-bullet retrieval
// queries.
type Retriever struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	symbols  SymbolSearcher
	text     TextSearcher
	hydrator ChunkHydrator
	rgPath   string
}

// New constructs a Retriever. symbols, text, and hydrator may be nil —
// the corresponding hybrid-search leg is simply skipped, matching
// retriever.py's own nil-db_session_maker short-circuits.
func New(e embedder.Embedder, store vectorstore.Store, symbols SymbolSearcher, text TextSearcher, hydrator ChunkHydrator) *Retriever {
	rgPath, _ := exec.LookPath("rg")
	return &Retriever{embedder: e, store: store, symbols: symbols, text: text, hydrator: hydrator, rgPath: rgPath}
}

// Retrieve searches moduleID's module-wide knowledge collection.
func (r *Retriever) Retrieve(ctx context.Context, moduleID, query string, limit int, scoreThreshold float32) ([]Result, error) {
	if query == "" {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Error("retriever: query embedding failed", slog.String("error", err.Error()))
		return nil, nil
	}

	hits, err := r.store.Search(ctx, indexer.KnowledgeCollection(moduleID), vector, limit, scoreThreshold, nil)
	if err != nil {
		slog.Error("retriever: vector search failed", slog.String("module_id", moduleID), slog.String("error", err.Error()))
		return nil, nil
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{
			Score:    hit.Score,
			Content:  stringField(hit.Payload, "content"),
			Source:   firstNonEmpty(stringField(hit.Payload, "source"), stringField(hit.Payload, "full_path"), "unknown"),
			Metadata: hit.Payload,
		}
	}
	return rerank(results, query), nil
}

// RetrieveWorkspace performs k-NN search over workspaceID's code
// collection, hydrating chunk content and source path from the
// relational store when a ChunkHydrator is configured (the vector
// payload itself carries only identifying metadata, not content).
func (r *Retriever) RetrieveWorkspace(ctx context.Context, workspaceID, query string, limit int, scoreThreshold float32) ([]Result, error) {
	if query == "" || workspaceID == "" {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Error("retriever: workspace query embedding failed", slog.String("error", err.Error()))
		return nil, nil
	}

	hits, err := r.store.Search(ctx, indexer.WorkspaceCollection(workspaceID), vector, limit, scoreThreshold, nil)
	if err != nil {
		slog.Error("retriever: workspace vector search failed", slog.String("workspace_id", workspaceID), slog.String("error", err.Error()))
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
	}

	var contentByID, sourceByID map[string]string
	if r.hydrator != nil {
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		contentByID, sourceByID, err = r.hydrator.HydrateChunks(ctx, ids)
		if err != nil {
			slog.Error("retriever: chunk hydration failed", slog.String("error", err.Error()))
		}
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		content := contentByID[hit.ID]
		if content == "" {
			content = stringField(hit.Payload, "content")
		}
		source := sourceByID[hit.ID]
		if source == "" {
			source = firstNonEmpty(stringField(hit.Payload, "file_path"), "workspace")
		}
		results[i] = Result{Score: hit.Score, Content: content, Source: source, Metadata: hit.Payload}
	}
	return results, nil
}

// RetrieveWorkspaceHybrid fans vector, symbol, and text search out in
// parallel, merges by (file_path, chunk_index, line) keeping the
// max-scoring hit per key, lexically reranks, and truncates to limit.
func (r *Retriever) RetrieveWorkspaceHybrid(ctx context.Context, workspaceID, workspaceRoot, query string, limit int, scoreThreshold float32, useRegex bool) ([]Result, error) {
	var vectorResults, symbolResults, textResults []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.RetrieveWorkspace(gctx, workspaceID, query, limit, scoreThreshold)
		vectorResults = res
		return err
	})
	g.Go(func() error {
		res, err := r.searchSymbols(gctx, workspaceID, query, limit)
		symbolResults = res
		return err
	})
	g.Go(func() error {
		res, err := r.searchText(gctx, workspaceID, workspaceRoot, query, limit, useRegex)
		textResults = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeResults(vectorResults, symbolResults, textResults)
	merged = rerank(merged, query)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// RetrieveACEBullets performs k-NN search over moduleID's ACE playbook
// collection.
func (r *Retriever) RetrieveACEBullets(ctx context.Context, moduleID, query string, limit int, scoreThreshold float32) ([]Result, error) {
	if query == "" {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Error("retriever: ace query embedding failed", slog.String("error", err.Error()))
		return nil, nil
	}

	hits, err := r.store.Search(ctx, aceCollection(moduleID), vector, limit, scoreThreshold, nil)
	if err != nil {
		slog.Error("retriever: ace search failed", slog.String("module_id", moduleID), slog.String("error", err.Error()))
		return nil, nil
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		bulletID := firstNonEmpty(stringField(hit.Payload, "bullet_id"), stringField(hit.Payload, "id"), "unknown")
		results[i] = Result{
			Score:    hit.Score,
			Content:  stringField(hit.Payload, "content"),
			Source:   fmt.Sprintf("ace_bullet_%s", bulletID),
			Metadata: hit.Payload,
		}
	}
	return results, nil
}

func (r *Retriever) searchSymbols(ctx context.Context, workspaceID, query string, limit int) ([]Result, error) {
	if r.symbols == nil {
		return nil, nil
	}
	terms := extractQueryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var all []Result
	for _, term := range terms {
		res, err := r.symbols.SearchSymbols(ctx, workspaceID, term, limit)
		if err != nil {
			return nil, fmt.Errorf("retriever: symbol search: %w", err)
		}
		all = append(all, res...)
	}
	return all, nil
}

// searchText prefers ripgrep over the workspace root when available,
// falling back to the relational store's SQL LIKE search.
func (r *Retriever) searchText(ctx context.Context, workspaceID, workspaceRoot, query string, limit int, useRegex bool) ([]Result, error) {
	if query == "" {
		return nil, nil
	}

	if r.rgPath != "" && workspaceRoot != "" {
		rgResults, err := searchWithRipgrep(ctx, r.rgPath, workspaceRoot, query, limit, useRegex)
		if err == nil && len(rgResults) > 0 {
			return rgResults, nil
		}
	}

	if r.text == nil {
		return nil, nil
	}
	return r.text.SearchText(ctx, workspaceID, query, limit, useRegex)
}

func aceCollection(moduleID string) string {
	return fmt.Sprintf("ace_%s", moduleID)
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func extractQueryTerms(query string) []string {
	matches := identifierTermRe.FindAllString(query, -1)
	terms := make([]string, len(matches))
	for i, m := range matches {
		terms[i] = toLower(m)
	}
	return terms
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func lexicalOverlap(query, content string) float32 {
	queryTerms := uniqueSet(extractQueryTerms(query))
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := uniqueSet(extractQueryTerms(content))
	if len(contentTerms) == 0 {
		return 0
	}
	var overlap int
	for term := range queryTerms {
		if contentTerms[term] {
			overlap++
		}
	}
	return float32(overlap) / float32(len(queryTerms))
}

func uniqueSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

// rerank boosts each result's score by 0.2x its lexical overlap with
// query, capped at 1.0, then sorts descending.
func rerank(results []Result, query string) []Result {
	if len(results) == 0 {
		return results
	}
	for i := range results {
		overlap := lexicalOverlap(query, results[i].Content)
		if results[i].Metadata == nil {
			results[i].Metadata = map[string]any{}
		}
		results[i].Metadata["lexical_score"] = overlap
		score := results[i].Score + 0.2*overlap
		if score > 1.0 {
			score = 1.0
		}
		results[i].Score = score
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

type resultKey struct {
	filePath   string
	chunkIndex any
	line       any
}

func keyFor(r Result) resultKey {
	filePath := r.Source
	if r.Metadata != nil {
		if fp, ok := r.Metadata["file_path"].(string); ok && fp != "" {
			filePath = fp
		}
	}
	var chunkIndex, line any
	if r.Metadata != nil {
		chunkIndex = r.Metadata["chunk_index"]
		line = r.Metadata["line"]
	}
	return resultKey{filePath: filePath, chunkIndex: chunkIndex, line: line}
}

// mergeResults combines multiple result sets, keeping the
// max-scoring hit per (file_path, chunk_index, line) key.
func mergeResults(sets ...[]Result) []Result {
	merged := make(map[resultKey]Result)
	var order []resultKey
	for _, set := range sets {
		for _, r := range set {
			key := keyFor(r)
			if existing, ok := merged[key]; !ok || r.Score > existing.Score {
				if _, seen := merged[key]; !seen {
					order = append(order, key)
				}
				merged[key] = r
			}
		}
	}
	out := make([]Result, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

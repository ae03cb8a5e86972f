package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

// Document is an arbitrary piece of knowledge to index outside the
// file/workspace path — release notes, module docs, playbook exports.
// Unlike FileIndexer's chunks, a Document's content is stored directly
// in the vector store payload: this is the generalization SPEC_FULL.md
// adds over indexer.py, which only ever indexes workspace source.
type Document struct {
	ID       string
	Content  string
	Source   string
	Metadata map[string]any
}

// KnowledgeIndexer embeds and upserts Documents into a module-wide
// knowledge collection, shared across workspaces of the same module.
type KnowledgeIndexer struct {
	embedder embedder.Embedder
	store    vectorstore.Store
}

// NewKnowledgeIndexer constructs a KnowledgeIndexer.
func NewKnowledgeIndexer(e embedder.Embedder, s vectorstore.Store) *KnowledgeIndexer {
	return &KnowledgeIndexer{embedder: e, store: s}
}

// KnowledgeCollection names the module-wide knowledge collection,
// "rag_<module_id>".
func KnowledgeCollection(moduleID string) string {
	return fmt.Sprintf("rag_%s", moduleID)
}

// IndexDocuments embeds and upserts docs into moduleID's knowledge
// collection. Documents without an ID are assigned a random one.
func (k *KnowledgeIndexer) IndexDocuments(ctx context.Context, moduleID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	collection := KnowledgeCollection(moduleID)
	if err := k.store.EnsureCollection(ctx, collection, uint64(k.embedder.Dimensions())); err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := k.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("knowledge indexer: embed documents: %w", err)
	}

	points := make([]vectorstore.Point, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		payload := map[string]any{
			"content":   d.Content,
			"source":    d.Source,
			"module_id": moduleID,
		}
		for k, v := range d.Metadata {
			payload[k] = v
		}
		points[i] = vectorstore.Point{ID: id, Vector: vectors[i], Payload: payload}
	}

	return k.store.Upsert(ctx, collection, points)
}

// DeleteDocuments removes documents by ID from moduleID's knowledge
// collection.
func (k *KnowledgeIndexer) DeleteDocuments(ctx context.Context, moduleID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return k.store.DeletePoints(ctx, KnowledgeCollection(moduleID), ids)
}

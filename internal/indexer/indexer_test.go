package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/chunker"
	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

type memHashTracker struct {
	hashes map[string]string
}

func newMemHashTracker() *memHashTracker {
	return &memHashTracker{hashes: make(map[string]string)}
}

func (m *memHashTracker) GetHash(ctx context.Context, workspaceID, relPath string) (string, bool, error) {
	h, ok := m.hashes[workspaceID+"/"+relPath]
	return h, ok, nil
}

func (m *memHashTracker) SetHash(ctx context.Context, workspaceID, relPath, hash string, size, lineCount int) error {
	m.hashes[workspaceID+"/"+relPath] = hash
	return nil
}

func (m *memHashTracker) DeleteHash(ctx context.Context, workspaceID, relPath string) error {
	delete(m.hashes, workspaceID+"/"+relPath)
	return nil
}

type memContentStore struct {
	chunks    map[string]string
	symbols   map[string][]chunker.Symbol
	vectorIDs map[string][]string
}

func newMemContentStore() *memContentStore {
	return &memContentStore{
		chunks:    make(map[string]string),
		symbols:   make(map[string][]chunker.Symbol),
		vectorIDs: make(map[string][]string),
	}
}

func (m *memContentStore) SaveChunk(ctx context.Context, workspaceID, relPath, vectorID string, chunkIndex int, content string) error {
	m.chunks[relPath] = content
	m.vectorIDs[relPath] = append(m.vectorIDs[relPath], vectorID)
	return nil
}

func (m *memContentStore) SaveSymbols(ctx context.Context, workspaceID, relPath string, symbols []chunker.Symbol) error {
	m.symbols[relPath] = symbols
	return nil
}

func (m *memContentStore) VectorIDsForPath(ctx context.Context, workspaceID, relPath string) ([]string, error) {
	return m.vectorIDs[relPath], nil
}

func (m *memContentStore) DeleteFile(ctx context.Context, workspaceID, relPath string) error {
	delete(m.chunks, relPath)
	delete(m.symbols, relPath)
	delete(m.vectorIDs, relPath)
	return nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDiscoverFilesSkipsIgnoredDirsAndExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README.md", "hello\n")
	writeFile(t, root, "binary.exe", "not indexable\n")
	writeFile(t, root, "node_modules/dep/index.js", "skip me\n")
	writeFile(t, root, ".git/HEAD", "skip me too\n")

	files, err := DiscoverFiles(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "README.md"}, files)
}

func TestFileIndexerIndexesAndSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	store := vectorstore.NewFakeStore()
	idx := NewFileIndexer(chunker.NewDefaultChunker(), embedder.NewFakeEmbedder(8), store, newMemHashTracker(), newMemContentStore())

	indexed, err := idx.IndexFile(context.Background(), "ws1", root, "main.go")
	require.NoError(t, err)
	assert.True(t, indexed)

	info, err := store.CollectionInfo(context.Background(), WorkspaceCollection("ws1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.PointsCount)

	indexed, err = idx.IndexFile(context.Background(), "ws1", root, "main.go")
	require.NoError(t, err)
	assert.False(t, indexed, "unchanged file should be skipped")
}

func TestFileIndexerReindexesOnChange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	store := vectorstore.NewFakeStore()
	hashes := newMemHashTracker()
	idx := NewFileIndexer(chunker.NewDefaultChunker(), embedder.NewFakeEmbedder(8), store, hashes, nil)

	_, err := idx.IndexFile(context.Background(), "ws1", root, "main.go")
	require.NoError(t, err)

	writeFile(t, root, "main.go", "package main\n\nfunc main() { println(1) }\n")
	indexed, err := idx.IndexFile(context.Background(), "ws1", root, "main.go")
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestFileIndexerReindexClearsPriorVectorsAndChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	store := vectorstore.NewFakeStore()
	hashes := newMemHashTracker()
	content := newMemContentStore()
	idx := NewFileIndexer(chunker.NewDefaultChunker(), embedder.NewFakeEmbedder(8), store, hashes, content)
	ctx := context.Background()

	_, err := idx.IndexFile(ctx, "ws1", root, "main.go")
	require.NoError(t, err)

	firstIDs, err := content.VectorIDsForPath(ctx, "ws1", "main.go")
	require.NoError(t, err)
	require.Len(t, firstIDs, 1)

	writeFile(t, root, "main.go", "package main\n\nfunc main() { println(1) }\n\nfunc extra() {}\n")
	indexed, err := idx.IndexFile(ctx, "ws1", root, "main.go")
	require.NoError(t, err)
	assert.True(t, indexed)

	secondIDs, err := content.VectorIDsForPath(ctx, "ws1", "main.go")
	require.NoError(t, err)
	assert.NotEqual(t, firstIDs, secondIDs, "reindex should mint fresh vector ids")

	info, err := store.CollectionInfo(ctx, WorkspaceCollection("ws1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(secondIDs)), info.PointsCount, "prior points must be deleted, not accumulated")
}

func TestFileIndexerWorkspaceIndexesAllDiscoveredFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, root, "b.py", "def b():\n    pass\n")

	store := vectorstore.NewFakeStore()
	idx := NewFileIndexer(chunker.NewDefaultChunker(), embedder.NewFakeEmbedder(8), store, nil, nil)

	stats, err := idx.IndexWorkspace(context.Background(), "ws2", root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 0, stats.Failed)
}

func TestKnowledgeIndexerIndexesDocumentsWithContentInPayload(t *testing.T) {
	store := vectorstore.NewFakeStore()
	fakeEmbedder := embedder.NewFakeEmbedder(8)
	ki := NewKnowledgeIndexer(fakeEmbedder, store)

	err := ki.IndexDocuments(context.Background(), "mod1", []Document{
		{ID: "doc1", Content: "release notes for v1", Source: "changelog"},
	})
	require.NoError(t, err)

	queryVector, err := fakeEmbedder.EmbedQuery(context.Background(), "release notes for v1")
	require.NoError(t, err)

	results, err := store.Search(context.Background(), KnowledgeCollection("mod1"), queryVector, 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].ID)
	assert.Equal(t, "release notes for v1", results[0].Payload["content"])
	assert.Equal(t, "changelog", results[0].Payload["source"])
}

func TestKnowledgeIndexerDeleteDocuments(t *testing.T) {
	store := vectorstore.NewFakeStore()
	ki := NewKnowledgeIndexer(embedder.NewFakeEmbedder(8), store)

	require.NoError(t, ki.IndexDocuments(context.Background(), "mod1", []Document{
		{ID: "doc1", Content: "alpha"},
		{ID: "doc2", Content: "beta"},
	}))

	require.NoError(t, ki.DeleteDocuments(context.Background(), "mod1", []string{"doc1"}))

	info, err := store.CollectionInfo(context.Background(), KnowledgeCollection("mod1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.PointsCount)
}

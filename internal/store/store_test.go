package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/chunker"
	"github.com/KhaineVulpana/loco-core/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sessions'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "sessions", name)
}

func TestAppendMessageCreatesSessionAndCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AppendMessage(ctx, "sess-1", "user", "hello there", map[string]any{"cwd": "/tmp"}, nil)
	require.NoError(t, err)
	err = s.AppendMessage(ctx, "sess-1", "assistant", "hi back", nil, map[string]any{"success": true})
	require.NoError(t, err)

	summary, ok, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, summary.MessageCount)
}

func TestEnsureTitleOnlySetsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTitle(ctx, "sess-1", "first message"))
	require.NoError(t, s.EnsureTitle(ctx, "sess-1", "second message"))

	summary, ok, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first message", summary.Title)
}

func TestGetSessionMissingReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordToolEventPersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordToolEvent(ctx, "sess-1", "read_file", map[string]any{"path": "a.go"}, "ok")
	require.NoError(t, err)

	var count int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM tool_events WHERE session_id = ?`, "sess-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHashTrackerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetHash(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetHash(ctx, "ws-1", "main.go", "hash-a", 13, 1))
	hash, ok, err := s.GetHash(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-a", hash)

	require.NoError(t, s.SetHash(ctx, "ws-1", "main.go", "hash-b", 13, 1))
	hash, ok, err = s.GetHash(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-b", hash)
}

func TestSaveChunkAndHydrateByVectorID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunk(ctx, "ws-1", "main.go", "vec-1", 0, "package main"))
	require.NoError(t, s.SaveChunk(ctx, "ws-1", "util.go", "vec-2", 0, "package util"))

	content, source, err := s.HydrateChunks(ctx, []string{"vec-1", "vec-2", "vec-missing"})
	require.NoError(t, err)
	assert.Equal(t, "package main", content["vec-1"])
	assert.Equal(t, "main.go", source["vec-1"])
	assert.Equal(t, "package util", content["vec-2"])
	assert.NotContains(t, content, "vec-missing")
}

func TestSaveChunkUpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunk(ctx, "ws-1", "main.go", "vec-1", 0, "v1"))
	require.NoError(t, s.SaveChunk(ctx, "ws-1", "main.go", "vec-1", 1, "v2"))

	content, _, err := s.HydrateChunks(ctx, []string{"vec-1"})
	require.NoError(t, err)
	assert.Equal(t, "v2", content["vec-1"])
}

func TestRemoveFileDeletesChunksSymbolsAndHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetHash(ctx, "ws-1", "main.go", "hash-a", 13, 1))
	require.NoError(t, s.SaveChunk(ctx, "ws-1", "main.go", "vec-1", 0, "package main"))
	require.NoError(t, s.SaveSymbols(ctx, "ws-1", "main.go", []chunker.Symbol{{Name: "Run", Kind: "function"}}))

	ids, err := s.VectorIDsForPath(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"vec-1"}, ids)

	require.NoError(t, s.DeleteFile(ctx, "ws-1", "main.go"))
	require.NoError(t, s.DeleteHash(ctx, "ws-1", "main.go"))

	ids, err = s.VectorIDsForPath(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, ok, err := s.GetHash(ctx, "ws-1", "main.go")
	require.NoError(t, err)
	assert.False(t, ok)

	results, err := s.SearchSymbols(ctx, "ws-1", "Run", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHydrateChunksEmptyInput(t *testing.T) {
	s := newTestStore(t)
	content, source, err := s.HydrateChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Empty(t, source)
}

func TestSearchTextFindsSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunk(ctx, "ws-1", "main.go", "vec-1", 0, "func Run() error"))
	require.NoError(t, s.SaveChunk(ctx, "ws-1", "other.go", "vec-2", 0, "func Stop() error"))

	results, err := s.SearchText(ctx, "ws-1", "Run", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "main.go", results[0].Source)
	assert.Equal(t, textSearchScore, results[0].Score)
}

func TestSearchTextEmptyQueryReturnsNothing(t *testing.T) {
	s := newTestStore(t)
	results, err := s.SearchText(context.Background(), "ws-1", "", 10, false)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSaveSymbolsReplacesPriorSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []chunker.Symbol{
		{Name: "Run", Kind: "function", StartLine: 1, EndLine: 5, Signature: "func Run()"},
	}
	require.NoError(t, s.SaveSymbols(ctx, "ws-1", "main.go", first))

	results, err := s.SearchSymbols(ctx, "ws-1", "Run", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	second := []chunker.Symbol{
		{Name: "Stop", Kind: "function", StartLine: 1, EndLine: 3, Signature: "func Stop()"},
	}
	require.NoError(t, s.SaveSymbols(ctx, "ws-1", "main.go", second))

	results, err = s.SearchSymbols(ctx, "ws-1", "Run", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.SearchSymbols(ctx, "ws-1", "Stop", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, symbolSearchScore, results[0].Score)
}

func TestSearchSymbolsMatchesParentQualname(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	symbols := []chunker.Symbol{
		{Name: "Close", Kind: "method", ParentQualname: "Session", StartLine: 1, EndLine: 2, Signature: "func (s *Session) Close()"},
	}
	require.NoError(t, s.SaveSymbols(ctx, "ws-1", "session.go", symbols))

	results, err := s.SearchSymbols(ctx, "ws-1", "Session", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "Close")
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetEmbedding(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, ok)

	vector := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.SetEmbedding(ctx, "hash-1", vector))

	got, ok, err := s.GetEmbedding(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vector, got)
}

func TestEmbeddingCacheHitBumpsUseCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vector := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.SetEmbedding(ctx, "hash-1", vector))

	count, err := s.UseCount(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, ok, err := s.GetEmbedding(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = s.GetEmbedding(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)

	count, err = s.UseCount(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWorkspacePolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadPolicy(ctx, "ws-1")
	require.NoError(t, err)
	assert.False(t, ok)

	policy := &config.WorkspacePolicy{
		ID:               "ws-1",
		Root:             "/workspace",
		AllowedCommands:  []string{"go"},
		RequireApproval:  true,
		CommandApproval:  config.CommandApprovalPrompt,
		AutoApproveTools: []string{"read_file"},
	}
	require.NoError(t, s.SavePolicy(ctx, policy))

	got, ok, err := s.LoadPolicy(ctx, "ws-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, policy.Root, got.Root)
	assert.Equal(t, policy.AllowedCommands, got.AllowedCommands)
	assert.True(t, got.RequireApproval)

	policy.Root = "/workspace2"
	require.NoError(t, s.SavePolicy(ctx, policy))
	got, ok, err = s.LoadPolicy(ctx, "ws-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/workspace2", got.Root)
}

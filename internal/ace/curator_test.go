package ace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.response}, nil
}

func (f *fakeProvider) GenerateStreaming(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ModelName() string     { return "fake" }
func (f *fakeProvider) MaxTokens() int        { return 0 }
func (f *fakeProvider) Temperature() float64  { return 0 }
func (f *fakeProvider) Close() error          { return nil }

func TestCurateParsesOperationsFromResponse(t *testing.T) {
	provider := &fakeProvider{response: `{"operations": [{"operation": "ADD", "section": "domain_knowledge", "content": "the service times out after 30s"}]}`}
	c := NewCurator(provider)
	playbook := NewPlaybook()

	ops, err := c.Curate(context.Background(), "investigate timeout bug", map[string]any{"key_insight": "timeouts are 30s"}, playbook)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "ADD", ops[0].Operation)
	assert.Equal(t, "domain_knowledge", ops[0].Section)
}

func TestCurateReturnsEmptyOnUnparseableResponse(t *testing.T) {
	provider := &fakeProvider{response: "not json at all"}
	c := NewCurator(provider)
	ops, err := c.Curate(context.Background(), "task", nil, NewPlaybook())
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestApplyDeltaAddUpdateRemove(t *testing.T) {
	c := NewCurator(&fakeProvider{})
	playbook := NewPlaybook()
	existing := playbook.AddBullet("domain_knowledge", "stale fact", "")

	ops := []DeltaOp{
		{Operation: "ADD", Section: "domain_knowledge", Content: "new fact"},
		{Operation: "UPDATE", BulletID: existing, Content: "corrected fact"},
	}
	require.NoError(t, c.ApplyDelta(context.Background(), playbook, ops, nil, nil, ""))

	bullet, ok := playbook.GetBulletByID(existing)
	require.True(t, ok)
	assert.Equal(t, "corrected fact", bullet.Content)
	assert.Equal(t, 2, playbook.GetBulletCount())

	require.NoError(t, c.ApplyDelta(context.Background(), playbook, []DeltaOp{{Operation: "REMOVE", BulletID: existing}}, nil, nil, ""))
	_, ok = playbook.GetBulletByID(existing)
	assert.False(t, ok)
}

func TestApplyDeltaMirrorsToVectorStoreWhenConfigured(t *testing.T) {
	c := NewCurator(&fakeProvider{})
	playbook := NewPlaybook()
	store := vectorstore.NewFakeStore()
	emb := embedder.NewFakeEmbedder(8)

	ops := []DeltaOp{{Operation: "ADD", Section: "useful_code_snippets", Content: "use errgroup for fan-out"}}
	require.NoError(t, c.ApplyDelta(context.Background(), playbook, ops, emb, store, Collection("mod1")))

	info, err := store.CollectionInfo(context.Background(), Collection("mod1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.PointsCount)
}

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/ace"
	"github.com/KhaineVulpana/loco-core/internal/llm"
)

type fixedProvider struct {
	response string
}

func (f *fixedProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	return &llm.Response{Content: f.response}, nil
}

func (f *fixedProvider) GenerateStreaming(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fixedProvider) ModelName() string    { return "fixed" }
func (f *fixedProvider) MaxTokens() int       { return 0 }
func (f *fixedProvider) Temperature() float64 { return 0 }
func (f *fixedProvider) Close() error         { return nil }

const reflectionWithFeedback = `{"reasoning": "ok", "error_identification": "n/a", "root_cause_analysis": "n/a", "correct_approach": "n/a", "key_insight": "cache the client", "bullet_feedback": [{"bullet_id": "dom-aaaaaaaa", "tag": "helpful"}]}`

func TestLearnAppliesBulletFeedbackAndCuratorOps(t *testing.T) {
	playbook := ace.NewPlaybook()
	bulletID := playbook.AddBullet("domain_knowledge", "cache the client", "dom-aaaaaaaa")

	reflectProvider := &fixedProvider{response: reflectionWithFeedback}
	curateProvider := &fixedProvider{response: `{"operations": [{"operation": "ADD", "section": "domain_knowledge", "content": "retry on 429"}]}`}

	l := &Learner{
		Reflector: ace.NewReflector(reflectProvider),
		Curator:   ace.NewCurator(curateProvider),
		Playbook:  playbook,
	}

	l.Learn(context.Background(), "investigate rate limiting", nil, map[string]any{"success": true}, nil, []string{bulletID})

	assert.Equal(t, 2, playbook.GetBulletCount())

	b, ok := playbook.GetBulletByID(bulletID)
	require.True(t, ok)
	assert.Equal(t, 1, b.HelpfulCount)
}

func TestLearnIsNoOpWithoutCollaborators(t *testing.T) {
	l := &Learner{}
	l.Learn(context.Background(), "task", nil, nil, nil, nil)
}

func TestLearnRunsMaintenancePastThreshold(t *testing.T) {
	playbook := ace.NewPlaybook()
	for i := 0; i < maintenanceBulletThreshold+1; i++ {
		playbook.AddBullet("domain_knowledge", "duplicate content", "")
	}

	l := &Learner{
		Reflector: ace.NewReflector(&fixedProvider{response: `{"reasoning":"r","error_identification":"e","root_cause_analysis":"r","correct_approach":"c","key_insight":"k"}`}),
		Curator:   ace.NewCurator(&fixedProvider{response: `{"operations": []}`}),
		Playbook:  playbook,
	}

	l.Learn(context.Background(), "task", nil, nil, nil, nil)

	assert.Equal(t, 1, playbook.GetBulletCount())
}

package ace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBulletAutoGeneratesIDWithSectionPrefix(t *testing.T) {
	p := NewPlaybook()
	id := p.AddBullet("useful_code_snippets", "use context.WithTimeout for network calls", "")
	assert.Contains(t, id, "use-")
	bullet, ok := p.GetBulletByID(id)
	require.True(t, ok)
	assert.Equal(t, "useful_code_snippets", bullet.Section)
}

func TestGetScoreDefaultsToHalfWithNoFeedback(t *testing.T) {
	b := &Bullet{}
	assert.Equal(t, 0.5, b.GetScore())
	b.HelpfulCount = 3
	b.HarmfulCount = 1
	assert.Equal(t, 0.75, b.GetScore())
}

func TestApplyFeedbackIgnoresNeutralTag(t *testing.T) {
	p := NewPlaybook()
	id := p.AddBullet("domain_knowledge", "the API rate limit is 100 req/min", "")

	updated := p.ApplyFeedback([]BulletFeedback{
		{BulletID: id, Tag: TagHelpful},
		{BulletID: id, Tag: TagNeutral},
	})

	assert.Equal(t, []string{id}, updated)
	bullet, _ := p.GetBulletByID(id)
	assert.Equal(t, 1, bullet.HelpfulCount)
	assert.Equal(t, 0, bullet.HarmfulCount)
}

func TestDeduplicateMergesExactMatchesCaseInsensitiveTrimmed(t *testing.T) {
	p := NewPlaybook()
	id1 := p.AddBullet("strategies_and_hard_rules", "Always run tests before committing.", "")
	p.MarkHelpful(id1)
	id2 := p.AddBullet("strategies_and_hard_rules", "  always run tests before committing.  ", "")
	p.MarkHarmful(id2)

	removed, updated := p.Deduplicate(0)

	assert.Equal(t, []string{id2}, removed)
	assert.Equal(t, []string{id1}, updated)
	survivor, ok := p.GetBulletByID(id1)
	require.True(t, ok)
	assert.Equal(t, 1, survivor.HelpfulCount)
	assert.Equal(t, 1, survivor.HarmfulCount)
	_, gone := p.GetBulletByID(id2)
	assert.False(t, gone)
}

func TestDeduplicateKeepsDistinctContent(t *testing.T) {
	p := NewPlaybook()
	p.AddBullet("domain_knowledge", "fact one", "")
	p.AddBullet("domain_knowledge", "fact two", "")

	removed, updated := p.Deduplicate(0)
	assert.Empty(t, removed)
	assert.Empty(t, updated)
	assert.Equal(t, 2, p.GetBulletCount())
}

func TestPruneHarmfulRemovesBulletsAtOrAboveThreshold(t *testing.T) {
	p := NewPlaybook()
	kept := p.AddBullet("troubleshooting_and_pitfalls", "keep this one", "")
	removedID := p.AddBullet("troubleshooting_and_pitfalls", "bad advice", "")
	p.MarkHarmful(removedID)
	p.MarkHarmful(removedID)
	p.MarkHarmful(removedID)

	removed := p.PruneHarmful(3)

	assert.Equal(t, []string{removedID}, removed)
	_, ok := p.GetBulletByID(kept)
	assert.True(t, ok)
	_, ok = p.GetBulletByID(removedID)
	assert.False(t, ok)
}

func TestToTextRendersFixedSectionOrder(t *testing.T) {
	p := NewPlaybook()
	p.AddBullet("domain_knowledge", "domain fact", "")
	p.AddBullet("strategies_and_hard_rules", "hard rule", "")

	text := p.ToText()
	strategiesIdx := indexOf(text, "Strategies And Hard Rules")
	domainIdx := indexOf(text, "Domain Knowledge")
	require.GreaterOrEqual(t, strategiesIdx, 0)
	require.GreaterOrEqual(t, domainIdx, 0)
	assert.Less(t, strategiesIdx, domainIdx, "sections should render in fixed order regardless of insertion order")
}

func TestToTextOmitsEmptySections(t *testing.T) {
	p := NewPlaybook()
	p.AddBullet("domain_knowledge", "only one bullet", "")
	text := p.ToText()
	assert.NotContains(t, text, "Apis And Schemas")
}

func TestUpdateBulletIsNoOpForUnknownID(t *testing.T) {
	p := NewPlaybook()
	p.UpdateBullet("does-not-exist", "new content", nil)
	assert.Equal(t, 0, p.GetBulletCount())
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

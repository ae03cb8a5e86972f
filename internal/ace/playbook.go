// Package ace implements C8: the Agentic Context Engineering playbook
// — a growing set of bullets organized into fixed sections, refined
// over time by a Reflector/Curator pair and mirrored into the vector
// store so it survives process restarts.
//
// Grounded on original_source's backend/app/ace/{playbook,curator,
// reflector,json_utils}.py, adapted into Go's explicit-error-return
// idiom per hector's pkg/memory/vector_memory.go. A Playbook does no
// locking of its own; concurrent mutation must be serialized by the
// caller.
package ace

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Tag is a feedback label applied to a bullet after it's used in a
// turn.
type Tag string

const (
	TagHelpful Tag = "helpful"
	TagHarmful Tag = "harmful"
	TagNeutral Tag = "neutral"
)

// sectionOrder is the playbook's five fixed sections, in the order
// ToText renders them — matching playbook.py's Playbook.__init__
// dict literal order (Python 3.7+ dicts preserve insertion order, so
// this Go slice is what stands in for that).
var sectionOrder = []string{
	"strategies_and_hard_rules",
	"useful_code_snippets",
	"troubleshooting_and_pitfalls",
	"apis_and_schemas",
	"domain_knowledge",
}

// Bullet is one entry in the playbook.
type Bullet struct {
	ID           string
	Section      string
	Content      string
	HelpfulCount int
	HarmfulCount int
	Metadata     map[string]any
}

// GetScore returns the bullet's helpful-ratio quality score in
// [0,1]; 0.5 when it has received no feedback yet.
func (b *Bullet) GetScore() float64 {
	total := b.HelpfulCount + b.HarmfulCount
	if total == 0 {
		return 0.5
	}
	return float64(b.HelpfulCount) / float64(total)
}

func (b *Bullet) toPayload() map[string]any {
	payload := map[string]any{
		"id":            b.ID,
		"section":       b.Section,
		"content":       b.Content,
		"helpful_count": b.HelpfulCount,
		"harmful_count": b.HarmfulCount,
		"bullet_id":     b.ID,
	}
	if b.Metadata != nil {
		payload["metadata"] = b.Metadata
	}
	return payload
}

// bulletFromPayload reconstructs a Bullet from a vector-store payload,
// preferring the modern {id, section, content} fields and falling
// back to legacy field names with defaults — matching both
// load_from_vector_db and retrieve_relevant_bullets' identical
// fallback blocks.
func bulletFromPayload(payload map[string]any, fallbackID string) Bullet {
	if id, ok := payload["id"].(string); ok {
		if section, ok := payload["section"].(string); ok {
			if content, ok := payload["content"].(string); ok {
				return Bullet{
					ID:           id,
					Section:      section,
					Content:      content,
					HelpfulCount: intField(payload, "helpful_count"),
					HarmfulCount: intField(payload, "harmful_count"),
					Metadata:     mapField(payload, "metadata"),
				}
			}
		}
	}

	id := fallbackID
	if bid, ok := payload["bullet_id"].(string); ok && bid != "" {
		id = bid
	}
	section := "strategies_and_hard_rules"
	if s, ok := payload["section"].(string); ok && s != "" {
		section = s
	}
	content, _ := payload["content"].(string)
	return Bullet{
		ID:           id,
		Section:      section,
		Content:      content,
		HelpfulCount: intField(payload, "helpful_count"),
		HarmfulCount: intField(payload, "harmful_count"),
		Metadata:     mapField(payload, "metadata"),
	}
}

func intField(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func mapField(payload map[string]any, key string) map[string]any {
	m, _ := payload[key].(map[string]any)
	return m
}

// Playbook is the evolving, section-organized bullet store.
type Playbook struct {
	bullets  map[string]*Bullet
	sections map[string][]string // section -> ordered bullet ids
}

// NewPlaybook constructs an empty Playbook with the five fixed
// sections pre-created.
func NewPlaybook() *Playbook {
	p := &Playbook{
		bullets:  make(map[string]*Bullet),
		sections: make(map[string][]string),
	}
	for _, s := range sectionOrder {
		p.sections[s] = nil
	}
	return p
}

// AddBullet adds a bullet, auto-generating an id ("sectionPrefix-shortUUID")
// when bulletID is empty.
func (p *Playbook) AddBullet(section, content, bulletID string) string {
	if _, ok := p.sections[section]; !ok {
		p.sections[section] = nil
	}
	if bulletID == "" {
		prefix := section
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		bulletID = fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
	}

	p.bullets[bulletID] = &Bullet{ID: bulletID, Section: section, Content: content}
	if !containsString(p.sections[section], bulletID) {
		p.sections[section] = append(p.sections[section], bulletID)
	}
	return bulletID
}

// UpdateBullet partially updates an existing bullet's content and/or
// metadata. It is a no-op for an unknown id.
func (p *Playbook) UpdateBullet(bulletID string, content string, metadata map[string]any) {
	bullet, ok := p.bullets[bulletID]
	if !ok {
		return
	}
	if content != "" {
		bullet.Content = content
	}
	if metadata != nil {
		bullet.Metadata = metadata
	}
}

// MarkHelpful increments a bullet's helpful count.
func (p *Playbook) MarkHelpful(bulletID string) bool {
	bullet, ok := p.bullets[bulletID]
	if !ok {
		return false
	}
	bullet.HelpfulCount++
	return true
}

// MarkHarmful increments a bullet's harmful count.
func (p *Playbook) MarkHarmful(bulletID string) bool {
	bullet, ok := p.bullets[bulletID]
	if !ok {
		return false
	}
	bullet.HarmfulCount++
	return true
}

// RemoveBullet deletes a bullet from the playbook and its section
// index. Removing an unknown id is a no-op.
func (p *Playbook) RemoveBullet(bulletID string) {
	bullet, ok := p.bullets[bulletID]
	if !ok {
		return
	}
	delete(p.bullets, bulletID)
	p.sections[bullet.Section] = removeString(p.sections[bullet.Section], bulletID)
}

// BulletFeedback is one feedback tag to apply to a bullet, matching
// reflector.py's bullet_feedback list entries.
type BulletFeedback struct {
	BulletID string
	Tag      Tag
}

// ApplyFeedback applies a batch of feedback tags, returning the ids
// actually updated. TagNeutral is a deliberate no-op — it exists so
// callers can pass every bullet a reflection mentions without
// filtering, matching apply_bullet_feedback's tag dispatch (which
// only branches on "helpful"/"harmful").
func (p *Playbook) ApplyFeedback(feedback []BulletFeedback) []string {
	var updated []string
	for _, f := range feedback {
		switch f.Tag {
		case TagHelpful:
			if p.MarkHelpful(f.BulletID) {
				updated = append(updated, f.BulletID)
			}
		case TagHarmful:
			if p.MarkHarmful(f.BulletID) {
				updated = append(updated, f.BulletID)
			}
		}
	}
	return updated
}

// GetSectionContent returns "[id] content" lines for every bullet in
// section, in insertion order.
func (p *Playbook) GetSectionContent(section string) []string {
	ids, ok := p.sections[section]
	if !ok {
		return nil
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		if b, ok := p.bullets[id]; ok {
			lines = append(lines, fmt.Sprintf("[%s] %s", b.ID, b.Content))
		}
	}
	return lines
}

// ToText renders every non-empty section as a titled block, in fixed
// section order.
func (p *Playbook) ToText() string {
	var blocks []string
	for _, section := range sectionOrder {
		ids := p.sections[section]
		if len(ids) == 0 {
			continue
		}
		title := sectionTitle(section)
		lines := []string{"\n## " + title + "\n"}
		for _, id := range ids {
			if b, ok := p.bullets[id]; ok {
				lines = append(lines, fmt.Sprintf("[%s] %s", b.ID, b.Content))
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n")
}

func sectionTitle(section string) string {
	words := strings.Split(section, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Deduplicate removes bullets whose content is identical after
// case-insensitive trimming, merging the duplicate's counters into
// the surviving (first-seen) bullet. It returns the removed and
// updated bullet ids.
func (p *Playbook) Deduplicate(threshold float64) (removed, updated []string) {
	seen := make(map[string]string) // normalized content -> surviving id
	var toRemove []string

	// Walk bullets in fixed section order, then insertion order within
	// each section (p.sections holds ordered id slices), so the
	// earliest-added bullet is always the survivor regardless of map
	// iteration order.
	for _, section := range sectionOrder {
		for _, id := range p.sections[section] {
			bullet, ok := p.bullets[id]
			if !ok {
				continue
			}
			normalized := strings.ToLower(strings.TrimSpace(bullet.Content))
			if survivorID, ok := seen[normalized]; ok {
				survivor := p.bullets[survivorID]
				survivor.HelpfulCount += bullet.HelpfulCount
				survivor.HarmfulCount += bullet.HarmfulCount
				if !containsString(updated, survivorID) {
					updated = append(updated, survivorID)
				}
				toRemove = append(toRemove, id)
			} else {
				seen[normalized] = id
			}
		}
	}

	for _, id := range toRemove {
		p.RemoveBullet(id)
	}
	return toRemove, updated
}

// PruneHarmful removes every bullet whose harmful count is at or
// above threshold.
func (p *Playbook) PruneHarmful(threshold int) []string {
	var toRemove []string
	for id, bullet := range p.bullets {
		if bullet.HarmfulCount >= threshold {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		p.RemoveBullet(id)
	}
	return toRemove
}

func (p *Playbook) GetBulletByID(bulletID string) (Bullet, bool) {
	b, ok := p.bullets[bulletID]
	if !ok {
		return Bullet{}, false
	}
	return *b, true
}

func (p *Playbook) GetBulletsBySection(section string) []Bullet {
	ids := p.sections[section]
	bullets := make([]Bullet, 0, len(ids))
	for _, id := range ids {
		if b, ok := p.bullets[id]; ok {
			bullets = append(bullets, *b)
		}
	}
	return bullets
}

func (p *Playbook) GetAllBullets() []Bullet {
	bullets := make([]Bullet, 0, len(p.bullets))
	for _, b := range p.bullets {
		bullets = append(bullets, *b)
	}
	return bullets
}

func (p *Playbook) GetBulletCount() int {
	return len(p.bullets)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

package ace

import (
	"context"
	"fmt"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

// DeltaOp is one curation edit to the playbook, matching curator.py's
// operation dict shape ({"operation": "ADD"|"UPDATE"|"REMOVE", ...}).
type DeltaOp struct {
	Operation string // "ADD", "UPDATE", "REMOVE"
	Section   string
	BulletID  string
	Content   string
}

// Curator turns a completed task's trajectory and reflection into a
// small set of playbook edits, grounded on original_source's
// backend/app/ace/curator.py.
type Curator struct {
	Provider llm.Provider
}

// NewCurator constructs a Curator backed by provider.
func NewCurator(provider llm.Provider) *Curator {
	return &Curator{Provider: provider}
}

const curatorSystemPrompt = `You are a Curator that maintains a playbook of strategies, code snippets, troubleshooting notes, API/schema facts, and domain knowledge for an AI coding agent.

Given a completed task and a reflection on how it went, propose the smallest set of edits to the playbook that captures what's newly useful, without duplicating what's already there.

Respond with a JSON object: {"operations": [{"operation": "ADD"|"UPDATE"|"REMOVE", "section": "...", "bullet_id": "...", "content": "..."}]}. Use ADD for new knowledge, UPDATE to refine an existing bullet's content (bullet_id required), REMOVE to delete a bullet that's now wrong or obsolete (bullet_id required, content not needed). Return {"operations": []} if nothing is worth changing.`

var availableSections = []string{
	"strategies_and_hard_rules",
	"useful_code_snippets",
	"troubleshooting_and_pitfalls",
	"apis_and_schemas",
	"domain_knowledge",
}

var operationTypes = []string{"ADD", "UPDATE", "REMOVE"}

func buildCurationPrompt(task string, reflection map[string]any, playbook *Playbook) string {
	var b strings.Builder
	b.WriteString("## Task\n")
	b.WriteString(task)
	b.WriteString("\n\n## Reflection\n")
	for _, key := range []string{"reasoning", "error_identification", "root_cause_analysis", "correct_approach", "key_insight"} {
		if v, ok := reflection[key]; ok {
			fmt.Fprintf(&b, "- %s: %v\n", key, v)
		}
	}
	b.WriteString("\n## Current Playbook\n")
	b.WriteString(playbook.ToText())
	b.WriteString("\n\n## Available sections\n")
	b.WriteString(strings.Join(availableSections, ", "))
	b.WriteString("\n\n## Operation types\n")
	b.WriteString(strings.Join(operationTypes, ", "))
	return b.String()
}

// Curate asks the LLM for a delta against the current playbook and
// returns the proposed operations. A malformed or unparseable
// response yields an empty slice rather than an error, matching
// curator.py's curate() catching JSON failures and logging instead of
// raising.
func (c *Curator) Curate(ctx context.Context, task string, reflection map[string]any, playbook *Playbook) ([]DeltaOp, error) {
	messages := []llm.Message{
		{Role: "system", Content: curatorSystemPrompt},
		{Role: "user", Content: buildCurationPrompt(task, reflection, playbook)},
	}
	resp, err := c.Provider.Generate(ctx, messages, llm.Options{ResponseFormat: "json", Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("ace: curator generate: %w", err)
	}

	obj, ok := ExtractJSONObject(resp.Content)
	if !ok {
		return nil, nil
	}
	rawOps, ok := obj["operations"].([]any)
	if !ok {
		return nil, nil
	}

	ops := make([]DeltaOp, 0, len(rawOps))
	for _, raw := range rawOps {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		op := DeltaOp{
			Operation: stringValue(m, "operation"),
			Section:   stringValue(m, "section"),
			BulletID:  stringValue(m, "bullet_id"),
			Content:   stringValue(m, "content"),
		}
		if op.Operation == "" {
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// ApplyDelta applies each operation to playbook, mirroring each
// mutation to the vector store when embedder/store/collection are all
// non-nil/non-empty — matching apply_delta's _has_vector_storage()
// guard.
func (c *Curator) ApplyDelta(ctx context.Context, playbook *Playbook, ops []DeltaOp, e embedder.Embedder, store vectorstore.Store, collection string) error {
	hasVectorStorage := e != nil && store != nil && collection != ""

	for _, op := range ops {
		switch strings.ToUpper(op.Operation) {
		case "ADD":
			id := playbook.AddBullet(op.Section, op.Content, op.BulletID)
			if hasVectorStorage {
				if err := playbook.SaveBulletToVectorDB(ctx, id, e, store, collection); err != nil {
					return err
				}
			}
		case "UPDATE":
			if op.BulletID == "" {
				continue
			}
			playbook.UpdateBullet(op.BulletID, op.Content, nil)
			if hasVectorStorage {
				if err := playbook.SaveBulletToVectorDB(ctx, op.BulletID, e, store, collection); err != nil {
					return err
				}
			}
		case "REMOVE":
			if op.BulletID == "" {
				continue
			}
			playbook.RemoveBullet(op.BulletID)
			if hasVectorStorage {
				if err := playbook.DeleteBulletFromVectorDB(ctx, op.BulletID, store, collection); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

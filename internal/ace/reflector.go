package ace

import (
	"context"
	"fmt"
	"strings"

	"github.com/KhaineVulpana/loco-core/internal/llm"
)

// DefaultMaxRefinementRounds matches reflector.py's max_rounds default.
const DefaultMaxRefinementRounds = 5

var requiredReflectionFields = []string{
	"reasoning",
	"error_identification",
	"root_cause_analysis",
	"correct_approach",
	"key_insight",
}

const reflectorSystemPrompt = `You are a Reflector that analyzes a completed coding task and its outcome, to extract a structured lesson for future tasks.

Respond with a JSON object containing exactly these fields: "reasoning" (your analysis), "error_identification" (what, if anything, went wrong), "root_cause_analysis" (why it went wrong, or why it went right), "correct_approach" (what should be done next time), "key_insight" (a one-sentence takeaway). Optionally include "bullet_feedback": a list of {"bullet_id": "...", "tag": "helpful"|"harmful"|"neutral"} for any playbook bullets that were used during the task.`

// Reflector produces a structured reflection on a finished task,
// iteratively re-prompting the model when its response doesn't
// validate, grounded on original_source's backend/app/ace/reflector.py.
type Reflector struct {
	Provider llm.Provider
}

// NewReflector constructs a Reflector backed by provider.
func NewReflector(provider llm.Provider) *Reflector {
	return &Reflector{Provider: provider}
}

func buildReflectionPrompt(task string, trajectory []llm.Message, outcome map[string]any, groundTruth any, usedBulletIDs []string) string {
	var b strings.Builder
	b.WriteString("## Task\n")
	b.WriteString(task)
	b.WriteString("\n\n## Trajectory\n")
	for _, m := range trajectory {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	b.WriteString("\n## Outcome\n")
	for k, v := range outcome {
		fmt.Fprintf(&b, "- %s: %v\n", k, v)
	}
	if groundTruth != nil {
		fmt.Fprintf(&b, "\n## Ground truth\n%v\n", groundTruth)
	}
	if len(usedBulletIDs) > 0 {
		b.WriteString("\n## Playbook bullets used this task\n")
		b.WriteString(strings.Join(usedBulletIDs, ", "))
	}
	return b.String()
}

// Reflect iteratively asks the model to produce a validated
// reflection, up to maxRounds attempts (DefaultMaxRefinementRounds
// when maxRounds <= 0). Each invalid response is fed back to the
// model along with a request to return valid JSON with all required
// fields; exhausting every round returns defaultReflection() rather
// than an error, matching reflect()'s fallback.
func (r *Reflector) Reflect(ctx context.Context, task string, trajectory []llm.Message, outcome map[string]any, groundTruth any, usedBulletIDs []string, maxRounds int) (map[string]any, error) {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRefinementRounds
	}

	messages := []llm.Message{
		{Role: "system", Content: reflectorSystemPrompt},
		{Role: "user", Content: buildReflectionPrompt(task, trajectory, outcome, groundTruth, usedBulletIDs)},
	}

	for round := 0; round < maxRounds; round++ {
		resp, err := r.Provider.Generate(ctx, messages, llm.Options{ResponseFormat: "json", Temperature: 0.3})
		if err != nil {
			return nil, fmt.Errorf("ace: reflector generate: %w", err)
		}

		obj, ok := ExtractJSONObject(resp.Content)
		if ok && validReflection(obj) {
			return obj, nil
		}

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: "That response was not valid JSON with all required fields (reasoning, error_identification, root_cause_analysis, correct_approach, key_insight). Please return valid JSON with exactly those fields."},
		)
	}

	return defaultReflection(), nil
}

func validReflection(obj map[string]any) bool {
	for _, field := range requiredReflectionFields {
		v, ok := obj[field]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

func defaultReflection() map[string]any {
	return map[string]any{
		"reasoning":            "Reflection unavailable after repeated invalid responses.",
		"error_identification": "unknown",
		"root_cause_analysis":  "unknown",
		"correct_approach":     "unknown",
		"key_insight":          "No insight could be extracted.",
	}
}

// ParseBulletFeedback extracts the optional "bullet_feedback" list
// from a reflection object into BulletFeedback values, skipping any
// malformed entries.
func ParseBulletFeedback(reflection map[string]any) []BulletFeedback {
	raw, ok := reflection["bullet_feedback"].([]any)
	if !ok {
		return nil
	}
	feedback := make([]BulletFeedback, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		bulletID, _ := m["bullet_id"].(string)
		tag, _ := m["tag"].(string)
		if bulletID == "" || tag == "" {
			continue
		}
		feedback = append(feedback, BulletFeedback{BulletID: bulletID, Tag: Tag(tag)})
	}
	return feedback
}

package agent

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KhaineVulpana/loco-core/internal/ace"
	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/llm"
	"github.com/KhaineVulpana/loco-core/internal/observability"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

// maintenanceBulletThreshold is the playbook size past which Learn
// runs Deduplicate and PruneHarmful, matching ace's own house-keeping
// trigger rather than running it on every turn.
const maintenanceBulletThreshold = 50

// pruneHarmfulThreshold is PruneHarmful's harmful-count cutoff.
const pruneHarmfulThreshold = 3

// Learner runs the post-turn ACE reflect/curate/update loop described
// in spec.md §4.9's "Side effects" paragraph: it must never fail the
// turn that produced the trajectory it is learning from, so every
// error is logged and swallowed rather than returned to the caller.
type Learner struct {
	Reflector  *ace.Reflector
	Curator    *ace.Curator
	Playbook   *ace.Playbook
	Embedder   embedder.Embedder
	Store      vectorstore.Store
	Collection string
	Logger     *slog.Logger

	mu sync.Mutex
}

func (l *Learner) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Learn reflects on one completed turn's trajectory/outcome, curates
// playbook deltas from the reflection, applies both the bullet
// feedback and the delta ops, and runs Deduplicate/PruneHarmful once
// the playbook has grown past maintenanceBulletThreshold bullets.
//
// It is a no-op if no Reflector/Curator/Playbook is configured — a
// runtime may be wired without a playbook at all. Concurrent Learn
// calls on one Learner run one at a time, since the Playbook does no
// locking of its own.
func (l *Learner) Learn(ctx context.Context, task string, trajectory []llm.Message, outcome map[string]any, groundTruth any, usedBulletIDs []string) {
	if l.Reflector == nil || l.Curator == nil || l.Playbook == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, span := observability.Tracer().Start(ctx, observability.SpanReflect)
	reflection, err := l.Reflector.Reflect(ctx, task, trajectory, outcome, groundTruth, usedBulletIDs, ace.DefaultMaxRefinementRounds)
	span.End()
	if err != nil {
		l.logger().Warn("agent: reflection failed", slog.String("error", err.Error()))
		return
	}

	if feedback := ace.ParseBulletFeedback(reflection); len(feedback) > 0 {
		l.Playbook.ApplyFeedback(feedback)
	}

	_, span = observability.Tracer().Start(ctx, observability.SpanCurate)
	span.SetAttributes(attribute.String(observability.AttrCollection, l.Collection))
	ops, err := l.Curator.Curate(ctx, task, reflection, l.Playbook)
	span.End()
	if err != nil {
		l.logger().Warn("agent: curation failed", slog.String("error", err.Error()))
		return
	}

	if len(ops) > 0 {
		if err := l.Curator.ApplyDelta(ctx, l.Playbook, ops, l.Embedder, l.Store, l.Collection); err != nil {
			l.logger().Warn("agent: applying curator delta failed", slog.String("error", err.Error()))
		}
	}

	if l.Playbook.GetBulletCount() > maintenanceBulletThreshold {
		l.Playbook.Deduplicate(0)
		l.Playbook.PruneHarmful(pruneHarmfulThreshold)
	}
}

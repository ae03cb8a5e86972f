package ace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
	"github.com/KhaineVulpana/loco-core/internal/vectorstore"
)

// Collection returns the Qdrant-flavored collection name a module's
// playbook mirrors into, "ace_<module_id>".
func Collection(moduleID string) string {
	return fmt.Sprintf("ace_%s", moduleID)
}

// SaveToVectorDB mirrors every bullet into collection, embedding each
// bullet's content independently (one point per bullet, matching
// save_to_vector_db's per-bullet upsert loop rather than a single
// batched call, since bullets are added incrementally over the
// playbook's life).
func (p *Playbook) SaveToVectorDB(ctx context.Context, e embedder.Embedder, store vectorstore.Store, collection string) (int, error) {
	bullets := p.GetAllBullets()
	if len(bullets) == 0 {
		return 0, nil
	}
	if err := store.EnsureCollection(ctx, collection, uint64(e.Dimensions())); err != nil {
		return 0, fmt.Errorf("ace: ensure collection: %w", err)
	}

	saved := 0
	for _, bullet := range bullets {
		if err := p.saveBullet(ctx, e, store, collection, &bullet); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// SaveBulletToVectorDB mirrors a single bullet, for use right after
// AddBullet/UpdateBullet rather than a full resync.
func (p *Playbook) SaveBulletToVectorDB(ctx context.Context, bulletID string, e embedder.Embedder, store vectorstore.Store, collection string) error {
	bullet, ok := p.GetBulletByID(bulletID)
	if !ok {
		return fmt.Errorf("ace: unknown bullet %q", bulletID)
	}
	if err := store.EnsureCollection(ctx, collection, uint64(e.Dimensions())); err != nil {
		return fmt.Errorf("ace: ensure collection: %w", err)
	}
	return p.saveBullet(ctx, e, store, collection, &bullet)
}

func (p *Playbook) saveBullet(ctx context.Context, e embedder.Embedder, store vectorstore.Store, collection string, bullet *Bullet) error {
	vec, err := e.EmbedSingle(ctx, bullet.Content)
	if err != nil {
		return fmt.Errorf("ace: embed bullet %q: %w", bullet.ID, err)
	}
	pointID := bullet.ID
	if _, err := uuid.Parse(pointID); err != nil {
		pointID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(bullet.ID)).String()
	}
	point := vectorstore.Point{ID: pointID, Vector: vec, Payload: bullet.toPayload()}
	if err := store.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
		return fmt.Errorf("ace: upsert bullet %q: %w", bullet.ID, err)
	}
	return nil
}

// DeleteBulletFromVectorDB removes a bullet from the mirror. Since
// points are addressed by vector id (not bullet id) and the two can
// diverge when a bullet id isn't itself a UUID, this scrolls the
// collection looking for the matching payload id rather than trying
// DeletePoints(bulletID) directly.
func (p *Playbook) DeleteBulletFromVectorDB(ctx context.Context, bulletID string, store vectorstore.Store, collection string) error {
	pointID, err := findPointID(ctx, store, collection, bulletID)
	if err != nil {
		return err
	}
	if pointID == "" {
		return nil
	}
	return store.DeletePoints(ctx, collection, []string{pointID})
}

func findPointID(ctx context.Context, store vectorstore.Store, collection, bulletID string) (string, error) {
	offset := ""
	for {
		page, err := store.Scroll(ctx, collection, 256, offset, nil)
		if err != nil {
			return "", fmt.Errorf("ace: scroll collection: %w", err)
		}
		for _, point := range page.Points {
			if stringPayload(point.Payload, "id") == bulletID || stringPayload(point.Payload, "bullet_id") == bulletID {
				return point.ID, nil
			}
		}
		if page.NextOffset == "" {
			return "", nil
		}
		offset = page.NextOffset
	}
}

// LoadFromVectorDB rebuilds a Playbook by scrolling every point out of
// collection, reconstructing bullets via the modern-then-legacy
// payload fallback described in bulletFromPayload.
func LoadFromVectorDB(ctx context.Context, store vectorstore.Store, collection string, maxBullets int) (*Playbook, error) {
	p := NewPlaybook()
	offset := ""
	loaded := 0
	for {
		page, err := store.Scroll(ctx, collection, 256, offset, nil)
		if err != nil {
			return nil, fmt.Errorf("ace: scroll collection: %w", err)
		}
		for _, point := range page.Points {
			bullet := bulletFromPayload(point.Payload, point.ID)
			p.bullets[bullet.ID] = &bullet
			if !containsString(p.sections[bullet.Section], bullet.ID) {
				p.sections[bullet.Section] = append(p.sections[bullet.Section], bullet.ID)
			}
			loaded++
			if maxBullets > 0 && loaded >= maxBullets {
				return p, nil
			}
		}
		if page.NextOffset == "" {
			return p, nil
		}
		offset = page.NextOffset
	}
}

// BulletMatch pairs a reconstructed bullet with its retrieval score.
type BulletMatch struct {
	Bullet Bullet
	Score  float32
}

// RetrieveRelevantBullets runs a k-NN search over collection and
// reconstructs each hit's bullet via the same fallback logic as
// LoadFromVectorDB — duplicated here rather than shared because
// playbook.py's retrieve_relevant_bullets and load_from_vector_db
// independently inline the identical fallback block.
func RetrieveRelevantBullets(ctx context.Context, query string, e embedder.Embedder, store vectorstore.Store, collection string, limit int, scoreThreshold float32) ([]BulletMatch, error) {
	vec, err := e.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ace: embed query: %w", err)
	}
	hits, err := store.Search(ctx, collection, vec, limit, scoreThreshold, nil)
	if err != nil {
		return nil, fmt.Errorf("ace: search: %w", err)
	}

	matches := make([]BulletMatch, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, BulletMatch{Bullet: bulletFromPayload(hit.Payload, hit.ID), Score: hit.Score})
	}
	return matches, nil
}

func stringPayload(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
)

// QdrantStore is the Store implementation backed by a real Qdrant
// cluster, via the gRPC client. Collection creation is idempotent the
// way pkg/databases/qdrant.go's Upsert is: check-then-create, with the
// same troubleshooting-hint style on connection errors.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore dials cfg's host/port.
func NewQdrantStore(cfg config.VectorStoreConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant: connect to %s:%d: %v (is Qdrant running?)", errs.ErrStorageUnavailable, cfg.Host, cfg.Port, err)
	}
	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: qdrant: check collection %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant: create collection %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	converted := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		converted = append(converted, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         converted,
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant: upsert into %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	return nil
}

func buildFilter(f *Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		conditions = append(conditions, qdrant.NewMatch(c.Key, c.Match))
	}
	return &qdrant.Filter{Must: conditions}
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *Filter) ([]SearchResult, error) {
	limitU := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		ScoreThreshold: &scoreThreshold,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant: search %q: %v", errs.ErrStorageUnavailable, collection, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:      pointIDString(r.GetId()),
			Score:   r.GetScore(),
			Payload: payloadToMap(r.GetPayload()),
		})
	}
	return out, nil
}

func (s *QdrantStore) Scroll(ctx context.Context, collection string, limit int, offset string, filter *Filter) (ScrollPage, error) {
	limitU := uint32(limit)
	if offset != "" {
		// Qdrant's scroll offset is inclusive; fetch one extra point so
		// the page still holds limit points after the offset is dropped.
		limitU++
	}
	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limitU,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset != "" {
		req.Offset = qdrant.NewID(offset)
	}

	resp, err := s.client.Scroll(ctx, req)
	if err != nil {
		return ScrollPage{}, fmt.Errorf("%w: qdrant: scroll %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	if offset != "" && len(resp) > 0 && pointIDString(resp[0].GetId()) == offset {
		resp = resp[1:]
	}
	if len(resp) > limit {
		resp = resp[:limit]
	}

	page := ScrollPage{Points: make([]Point, 0, len(resp))}
	for _, r := range resp {
		page.Points = append(page.Points, Point{
			ID:      pointIDString(r.GetId()),
			Payload: payloadToMap(r.GetPayload()),
		})
	}
	if len(resp) == limit && len(resp) > 0 {
		page.NextOffset = pointIDString(resp[len(resp)-1].GetId())
	}
	return page, nil
}

func (s *QdrantStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant: delete from %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	return nil
}

func (s *QdrantStore) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("%w: qdrant: get collection info %q: %v", errs.ErrStorageUnavailable, collection, err)
	}
	var vecSize uint64
	if params := info.GetConfig().GetParams(); params != nil {
		if vp := params.GetVectorsConfig().GetParams(); vp != nil {
			vecSize = vp.GetSize()
		}
	}
	return CollectionInfo{
		PointsCount: info.GetPointsCount(),
		VectorSize:  vecSize,
	}, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, lv := range kind.ListValue.GetValues() {
			list = append(list, valueToAny(lv))
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

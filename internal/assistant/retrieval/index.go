// Package retrieval stores catalog vectors in Qdrant and serves the hybrid
// (cosine + structured filter) queries that ground generation prompts.
package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/motorchat-core/server/internal/assistant/model"
	logx "github.com/motorchat-core/server/pkg/logger"
)

const maxMessageSize = 50 * 1024 * 1024

// HybridQuery combines a query vector with exact-match structured filters.
type HybridQuery struct {
	OwnerID     string
	Vector      []float32
	Category    string
	InStockOnly bool
	PriceMin    *float64
	PriceMax    *float64
	TopK        int
}

type Index struct {
	client *qdrant.Client
	cfg    model.RetrievalConfig
}

func NewIndex(cfg model.RetrievalConfig) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Index{client: client, cfg: cfg}, nil
}

// EnsureCollection creates the catalog collection when it does not exist yet.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", ix.cfg.Collection, err)
	}
	if exists {
		return nil
	}
	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", ix.cfg.Collection, err)
	}
	logx.Info().Str("collection", ix.cfg.Collection).Msg("created catalog collection")
	return nil
}

// UpsertBatch writes one point per item with vectors[i] belonging to
// items[i]. Point ids derive deterministically from the item id so re-upserts
// replace instead of duplicating.
func (ix *Index) UpsertBatch(ctx context.Context, items []model.CatalogItem, vectors [][]float32) error {
	if len(items) != len(vectors) {
		return fmt.Errorf("item/vector count mismatch: %d != %d", len(items), len(vectors))
	}
	if len(items) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(item.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: itemPayload(item),
		}
	}

	if _, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// HybridSearch runs a cosine query constrained by the structured filters.
// Index failures degrade to an empty result set so the caller only loses
// grounding context, never the turn.
func (ix *Index) HybridSearch(ctx context.Context, q HybridQuery) []model.RankedResult {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}

	filter := buildFilter(q)
	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.cfg.Collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		logx.Warn().Err(err).Str("collection", ix.cfg.Collection).Msg("hybrid search failed, returning no context")
		return nil
	}

	results := make([]model.RankedResult, 0, len(points))
	for _, p := range points {
		results = append(results, scoredPointResult(p))
	}
	return results
}

// DeleteByOwner removes every vector belonging to an owner, used when a
// catalog is torn down.
func (ix *Index) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.cfg.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{keywordCondition("owner_id", ownerID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete points for owner %s: %w", ownerID, err)
	}
	return nil
}

// DeleteItems removes the vectors of individual catalog items.
func (ix *Index) DeleteItems(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.cfg.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						{
							ConditionOneOf: &qdrant.Condition_Field{
								Field: &qdrant.FieldCondition{
									Key: "id",
									Match: &qdrant.Match{
										MatchValue: &qdrant.Match_Keywords{
											Keywords: &qdrant.RepeatedStrings{Strings: ids},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

func (ix *Index) Close() error {
	return ix.client.Close()
}

// --- helpers ---

func pointID(itemID string) *qdrant.PointId {
	if _, err := uuid.Parse(itemID); err == nil {
		return qdrant.NewIDUUID(itemID)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(itemID)).String())
}

func itemPayload(item model.CatalogItem) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"id":       {Kind: &qdrant.Value_StringValue{StringValue: item.ID}},
		"owner_id": {Kind: &qdrant.Value_StringValue{StringValue: item.OwnerID}},
		"name":     {Kind: &qdrant.Value_StringValue{StringValue: item.Name}},
		"category": {Kind: &qdrant.Value_StringValue{StringValue: item.Category}},
		"price":    {Kind: &qdrant.Value_DoubleValue{DoubleValue: item.Price}},
		"in_stock": {Kind: &qdrant.Value_BoolValue{BoolValue: item.InStock}},
		"content":  {Kind: &qdrant.Value_StringValue{StringValue: item.Name + ". " + item.Description}},
	}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func buildFilter(q HybridQuery) *qdrant.Filter {
	var conditions []*qdrant.Condition
	if q.OwnerID != "" {
		conditions = append(conditions, keywordCondition("owner_id", q.OwnerID))
	}
	if q.Category != "" {
		conditions = append(conditions, keywordCondition("category", q.Category))
	}
	if q.InStockOnly {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "in_stock",
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: true}},
				},
			},
		})
	}
	if q.PriceMin != nil || q.PriceMax != nil {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "price",
					Range: &qdrant.Range{Gte: q.PriceMin, Lte: q.PriceMax},
				},
			},
		})
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func scoredPointResult(p *qdrant.ScoredPoint) model.RankedResult {
	result := model.RankedResult{Score: p.Score}
	if p.Payload == nil {
		return result
	}
	result.Metadata = make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			result.Metadata[k] = val.StringValue
			switch k {
			case "content":
				result.Content = val.StringValue
			case "id":
				result.ID = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			result.Metadata[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			result.Metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			result.Metadata[k] = val.BoolValue
		}
	}
	return result
}

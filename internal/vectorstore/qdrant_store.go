package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/logging"
)

// classifyQdrantErr maps a gRPC status code to spec §4.4's permanent/
// transient split, mirroring how internal/embedding/client.go splits
// 429/5xx (transient) from other 4xx (permanent): codes that mean "this
// request is malformed or will never succeed" (bad vector size, missing
// collection, denied auth) are permanent; everything else — including an
// unparseable non-gRPC error — is treated as transient, the safer default
// for a dependency that may simply be briefly unreachable.
func classifyQdrantErr(err error) apperrors.Kind {
	st, ok := status.FromError(err)
	if !ok {
		return apperrors.KindDependencyTransient
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition, codes.OutOfRange, codes.PermissionDenied, codes.Unauthenticated:
		return apperrors.KindDependencyPermanent
	default:
		return apperrors.KindDependencyTransient
	}
}

// QdrantStore implements Store over a real Qdrant deployment. Grounded on
// the donor's internal/storage/qdrant.go: client construction, payload
// marshaling via qdrant.Value, and point-id handling follow it closely,
// generalized from the donor's fixed ConversationChunk shape to the C4
// Payload struct.
type QdrantStore struct {
	client *qdrant.Client
	logger logging.Logger
}

// NewQdrantStore dials a Qdrant instance per cfg. Collection creation is
// deferred to EnsureCollection so callers control vector size/metric per
// call, matching the C4 contract.
func NewQdrantStore(ctx context.Context, cfg *Config, logger logging.Logger) (*QdrantStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, apperrors.Wrap(classifyQdrantErr(err), "creating qdrant client", err)
	}

	return &QdrantStore{client: client, logger: logger.WithComponent("vectorstore")}, nil
}

func toDistance(m Metric) qdrant.Distance {
	switch m {
	case MetricCosine:
		return qdrant.Distance_Cosine
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection creates the named collection if it does not already
// exist, per spec §4.9's ensureCollection(name, vectorSize, metric).
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), "listing qdrant collections", err)
	}
	for _, c := range collections {
		if c == name {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: toDistance(metric),
		}),
	})
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), fmt.Sprintf("creating qdrant collection %s", name), err)
	}
	s.logger.Info("created vector collection", "collection", name)
	return nil
}

// pointUUID derives a stable UUID from our sha256 pointId, since Qdrant
// point ids must be an unsigned integer or a UUID string and our pointId
// (H(docId, chunkIndex)) is neither — the canonical string is preserved in
// the payload's point_id field for round-tripping.
func pointUUID(pointID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(pointID)).String()
}

func payloadToValues(pointID string, p Payload) map[string]*qdrant.Value {
	values := map[string]*qdrant.Value{
		"point_id":      stringValue(pointID),
		"doc_id":        stringValue(p.DocID),
		"collection_id": stringValue(p.CollectionID),
		"chunk_index":   intValue(int64(p.ChunkIndex)),
		"content":       stringValue(p.Content),
		"content_hash":  stringValue(p.ContentHash),
	}
	if len(p.TitleChain) > 0 {
		values["title_chain"] = stringSliceValue(p.TitleChain)
	}
	return values
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func stringSliceValue(ss []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(ss))
	for i, s := range ss {
		values[i] = stringValue(s)
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

func stringFromPayload(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Upsert implements the C4 contract's upsert(collection,
// [{id, vector, payload}]).
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		wire[i] = &qdrant.PointStruct{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointUUID(p.ID)}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: p.Vector}}},
			Payload: payloadToValues(p.ID, p.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: wire})
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), "upserting vector points", err)
	}
	return nil
}

// Search implements the C4 contract's search(collection, {vector, limit,
// filter?}) → [{pointId, score}].
func (s *QdrantStore) Search(ctx context.Context, collection string, params SearchParams) ([]SearchHit, error) {
	if params.Limit <= 0 {
		return nil, apperrors.Validation("limit must be positive")
	}

	var filter *qdrant.Filter
	if len(params.Filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(params.Filter))
		for k, v := range params.Filter {
			conditions = append(conditions, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   k,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
					},
				},
			})
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	limit := uint64(params.Limit)
	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(params.Vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, apperrors.Wrap(classifyQdrantErr(err), "querying vector store", err)
	}

	hits := make([]SearchHit, 0, len(result))
	for _, point := range result {
		payload := point.GetPayload()
		pointID := stringFromPayload(payload, "point_id")
		if pointID == "" {
			continue
		}
		hits = append(hits, SearchHit{PointID: pointID, Score: point.GetScore()})
	}
	return hits, nil
}

// DeletePointsByDoc implements deletePointsByDoc(docId) — deletes every
// point whose payload.doc_id matches.
func (s *QdrantStore) DeletePointsByDoc(ctx context.Context, collection, docID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{{
						ConditionOneOf: &qdrant.Condition_Field{
							Field: &qdrant.FieldCondition{
								Key:   "doc_id",
								Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: docID}},
							},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), "deleting points by doc", err)
	}
	return nil
}

// DeletePointsByCollection implements deletePointsByCollection(collectionId)
// — deletes every point whose payload.collection_id matches. `collection`
// is the physical vector-store collection (which may host more than one
// logical docindex collection); `collectionID` is the payload filter value.
func (s *QdrantStore) DeletePointsByCollection(ctx context.Context, collection, collectionID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{{
						ConditionOneOf: &qdrant.Condition_Field{
							Field: &qdrant.FieldCondition{
								Key:   "collection_id",
								Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: collectionID}},
							},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), "deleting points by collection", err)
	}
	return nil
}

// HealthCheck verifies connectivity by requesting collection info for the
// configured default collection name is not required here; callers pass
// their own collection via EnsureCollection, so HealthCheck just lists
// collections as a lightweight connectivity probe.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.ListCollections(ctx)
	if err != nil {
		return apperrors.Wrap(classifyQdrantErr(err), "qdrant health check", err)
	}
	return nil
}

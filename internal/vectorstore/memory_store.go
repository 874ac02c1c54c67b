package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/example/docindex/internal/apperrors"
)

// MemoryStore is an in-process Store implementation for tests and small
// deployments, grounded on the donor's internal/storage/mock_store.go
// (map-backed, no external dependency).
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]bool
	points      map[string]map[string]Point // collection -> pointId -> Point
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]bool),
		points:      make(map[string]map[string]Point),
	}
}

func (m *MemoryStore) EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = true
	if m.points[name] == nil {
		m.points[name] = make(map[string]Point)
	}
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.points[collection] == nil {
		m.points[collection] = make(map[string]Point)
	}
	for _, p := range points {
		m.points[collection][p.ID] = p
	}
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, collection string, params SearchParams) ([]SearchHit, error) {
	if params.Limit <= 0 {
		return nil, apperrors.Validation("limit must be positive")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []SearchHit
	for _, p := range m.points[collection] {
		if !matchesFilter(p.Payload, params.Filter) {
			continue
		}
		hits = append(hits, SearchHit{PointID: p.ID, Score: cosineSimilarity(params.Vector, p.Vector)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	return hits, nil
}

func matchesFilter(p Payload, filter map[string]string) bool {
	for k, v := range filter {
		switch k {
		case "doc_id":
			if p.DocID != v {
				return false
			}
		case "collection_id":
			if p.CollectionID != v {
				return false
			}
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func (m *MemoryStore) DeletePointsByDoc(ctx context.Context, collection, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points[collection] {
		if p.Payload.DocID == docID {
			delete(m.points[collection], id)
		}
	}
	return nil
}

func (m *MemoryStore) DeletePointsByCollection(ctx context.Context, collection, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points[collection] {
		if p.Payload.CollectionID == collectionID {
			delete(m.points[collection], id)
		}
	}
	return nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

// Package vectorstore implements component C4: the vector database
// abstraction used for semantic search (spec §4's VectorStore contract,
// §6's external-interfaces table).
package vectorstore

import "context"

// Metric names the distance function a collection is created with.
type Metric string

const (
	MetricCosine Metric = "cosine"
)

// Payload is the fixed struct model for a point's metadata, per spec §9's
// DESIGN NOTES: "model payload as a fixed struct {docId, collectionId,
// chunkIndex, content, contentHash, titleChain?}; additional fields live
// outside payload."
type Payload struct {
	DocID        string
	CollectionID string
	ChunkIndex   int
	Content      string
	ContentHash  string
	TitleChain   []string
}

// Point is one vector plus its deterministic id and payload, ready for
// upsert.
type Point struct {
	ID      string // pointId = H(docId, chunkIndex)
	Vector  []float32
	Payload Payload
}

// SearchHit is one ranked result from Search.
type SearchHit struct {
	PointID string
	Score   float32
}

// SearchParams bounds a similarity search.
type SearchParams struct {
	Vector []float32
	Limit  int
	Filter map[string]string // optional equality filters over payload fields
}

// Store is the C4 contract consumed by the rest of the core.
type Store interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, params SearchParams) ([]SearchHit, error)
	DeletePointsByDoc(ctx context.Context, collection, docID string) error
	DeletePointsByCollection(ctx context.Context, collection, collectionID string) error
	HealthCheck(ctx context.Context) error
}

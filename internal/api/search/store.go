package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// QueryResult is the raw shape returned by an embedding-capable store, plus
// the normalized POI records built from it at the store boundary. The
// parallel slices share one index.
type QueryResult struct {
	IDs       []uuid.UUID
	Documents []string
	Metadatas []map[string]string
	Distances []float64
	POIs      []types.POIDetailedInfo
}

// Store is the narrow contract for the embedding-capable data store. A
// startup Connect failure is fatal to the composing layer; per-call failures
// are short-circuited through the circuit breaker by the pipeline.
type Store interface {
	Connect(ctx context.Context) error
	Query(ctx context.Context, collection string, vector []float32, k int) (*QueryResult, error)
	// FetchByIDs loads POI records in the order of the given ids, skipping
	// unknown ones. Used to rebuild conversational context after a restart.
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]types.POIDetailedInfo, error)
	ListCollections(ctx context.Context) ([]string, error)
	Count(ctx context.Context, collection string) (int, error)
}

// Reranker is the secondary ranking collaborator: best-effort, never fatal.
// It returns the candidate ids in its preferred order and may omit some.
type Reranker interface {
	Rank(ctx context.Context, candidates []types.POIDetailedInfo, query string) ([]uuid.UUID, error)
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/go-poi-discovery/app/observability/metrics"
	"github.com/FACorreiaa/go-poi-discovery/app/resilience"
	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// omittedScore is assigned to candidates the reranker dropped; they are
// appended after the ranked ones.
const omittedScore = 0.05

// PipelineConfig tunes the search pipeline.
type PipelineConfig struct {
	// RerankThreshold is the result-set size above which the secondary
	// ranking collaborator is consulted.
	RerankThreshold int
	// DefaultResultCount is used when the caller passes k <= 0.
	DefaultResultCount int
}

// Pipeline runs embedding searches through the circuit breaker, caches by
// fingerprint and optionally re-ranks large result sets. Reranker failures
// never propagate; the pipeline falls back to the store's natural order.
type Pipeline struct {
	store    Store
	reranker Reranker
	cache    *ResultCache
	breaker  *resilience.Breaker
	cfg      PipelineConfig
	logger   *slog.Logger
	metrics  *metrics.AppMetrics
	group    singleflight.Group
}

func NewPipeline(store Store, reranker Reranker, cache *ResultCache, breaker *resilience.Breaker, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.RerankThreshold <= 0 {
		cfg.RerankThreshold = 5
	}
	if cfg.DefaultResultCount <= 0 {
		cfg.DefaultResultCount = 10
	}
	metrics.InitAppMetrics()
	return &Pipeline{
		store:    store,
		reranker: reranker,
		cache:    cache,
		breaker:  breaker,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.Get(),
	}
}

// searchOutcome travels through singleflight.
type searchOutcome struct {
	pois  []types.ScoredPOI
	total int
}

// Search returns the ranked POIs for a query embedding plus the total
// candidate count the store produced.
func (p *Pipeline) Search(ctx context.Context, collection string, queryText string, vector []float32, k int) ([]types.ScoredPOI, int, error) {
	ctx, span := otel.Tracer("SearchPipeline").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	))
	defer span.End()

	if p.store == nil {
		span.SetStatus(codes.Error, "store not initialized")
		return nil, 0, types.ErrNotConnected
	}
	if k <= 0 {
		k = p.cfg.DefaultResultCount
	}

	key := Fingerprint(collection, vector, k)
	span.SetAttributes(attribute.String("cache.key", key))

	if cached, found := p.cache.Get(key); found {
		p.metrics.SearchCacheHitsTotal.Add(ctx, 1)
		p.logger.DebugContext(ctx, "search cache hit", slog.String("cache_key", key))
		span.SetStatus(codes.Ok, "Served from cache")
		return cloneScored(cached.POIs), cached.Total, nil
	}

	// Concurrent identical misses collapse into one store round-trip.
	v, err, _ := p.group.Do(key, func() (any, error) {
		result, err := resilience.Do(ctx, p.breaker,
			func(ctx context.Context) (*QueryResult, error) {
				return p.store.Query(ctx, collection, vector, k)
			}, nil)
		if err != nil {
			return nil, err
		}

		pois := p.rankResults(ctx, result.POIs, queryText)
		p.cache.Set(key, pois, len(result.POIs))
		return &searchOutcome{pois: pois, total: len(result.POIs)}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		if errors.Is(err, types.ErrCircuitOpen) || errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrNotConnected) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("embedding store query: %w: %v", types.ErrUpstream, err)
	}

	outcome := v.(*searchOutcome)
	span.SetAttributes(attribute.Int("results.count", len(outcome.pois)))
	span.SetStatus(codes.Ok, "Search completed")
	return cloneScored(outcome.pois), outcome.total, nil
}

// FetchByIDs loads POI records by id through the circuit breaker, preserving
// the given order. Used to rebuild a session's previous-turn context when the
// in-process copy is gone.
func (p *Pipeline) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]types.POIDetailedInfo, error) {
	ctx, span := otel.Tracer("SearchPipeline").Start(ctx, "FetchByIDs", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	if p.store == nil {
		span.SetStatus(codes.Error, "store not initialized")
		return nil, types.ErrNotConnected
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pois, err := resilience.Do(ctx, p.breaker,
		func(ctx context.Context) ([]types.POIDetailedInfo, error) {
			return p.store.FetchByIDs(ctx, ids)
		}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		if errors.Is(err, types.ErrCircuitOpen) || errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrNotConnected) {
			return nil, err
		}
		return nil, fmt.Errorf("embedding store fetch: %w: %v", types.ErrUpstream, err)
	}
	span.SetAttributes(attribute.Int("results.count", len(pois)))
	span.SetStatus(codes.Ok, "Fetch completed")
	return pois, nil
}

// cloneScored copies the result slice so callers can annotate entries without
// mutating the cached copy shared across requests.
func cloneScored(pois []types.ScoredPOI) []types.ScoredPOI {
	if pois == nil {
		return nil
	}
	out := make([]types.ScoredPOI, len(pois))
	copy(out, pois)
	return out
}

// rankResults applies the secondary ranking collaborator when the candidate
// set is large enough, otherwise keeps the store's order with linearly
// decaying scores.
func (p *Pipeline) rankResults(ctx context.Context, candidates []types.POIDetailedInfo, queryText string) []types.ScoredPOI {
	if len(candidates) == 0 {
		return nil
	}
	if p.reranker == nil || len(candidates) <= p.cfg.RerankThreshold {
		return naturalOrder(candidates)
	}

	orderedIDs, err := p.reranker.Rank(ctx, candidates, queryText)
	if err != nil {
		// Best-effort collaborator: swallow and keep natural order.
		p.logger.WarnContext(ctx, "reranker failed, falling back to natural order",
			slog.Any("error", err))
		return naturalOrder(candidates)
	}

	byID := make(map[uuid.UUID]types.POIDetailedInfo, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	scores := linearDecay(len(candidates))
	ranked := make([]types.ScoredPOI, 0, len(candidates))
	used := make(map[uuid.UUID]bool, len(candidates))
	for _, id := range orderedIDs {
		poi, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		ranked = append(ranked, types.ScoredPOI{POI: poi, Relevance: scores[len(ranked)]})
	}
	// Anything the collaborator omitted still ships, at a fixed low score.
	for _, c := range candidates {
		if !used[c.ID] {
			ranked = append(ranked, types.ScoredPOI{POI: c, Relevance: omittedScore})
		}
	}
	return ranked
}

func naturalOrder(candidates []types.POIDetailedInfo) []types.ScoredPOI {
	scores := linearDecay(len(candidates))
	out := make([]types.ScoredPOI, len(candidates))
	for i, c := range candidates {
		out[i] = types.ScoredPOI{POI: c, Relevance: scores[i]}
	}
	return out
}

// linearDecay produces n scores from 1.0 down to 0.1.
func linearDecay(n int) []float64 {
	scores := make([]float64, n)
	if n == 1 {
		scores[0] = 1.0
		return scores
	}
	step := 0.9 / float64(n-1)
	for i := range scores {
		scores[i] = 1.0 - float64(i)*step
	}
	return scores
}

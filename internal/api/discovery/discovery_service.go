package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-poi-discovery/internal/api/followup"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/hours"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/intent"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/search"
	"github.com/FACorreiaa/go-poi-discovery/internal/api/session"
	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the per-turn contract of the discovery engine.
type Service interface {
	Discover(ctx context.Context, req types.DiscoverRequest) (*types.DiscoverResponse, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) bool
}

// Embedder produces a query vector for the search pipeline.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the orchestration layer.
type Config struct {
	DefaultCollection  string
	DefaultResultCount int
}

// ServiceImpl wires one conversational turn through the engine: classify,
// resolve follow-up, search or short-circuit, annotate opening status,
// update the session.
type ServiceImpl struct {
	logger     *slog.Logger
	store      *session.Store
	classifier *intent.Classifier
	resolver   *followup.Resolver
	hoursEng   *hours.Engine
	pipeline   *search.Pipeline
	embedder   Embedder
	cfg        Config
	now        func() time.Time

	// lastResults remembers the POI records shown per session so follow-up
	// turns can reuse them without a store round-trip. Sessions only persist
	// ids.
	lastResults *cache.Cache
}

// Option mutates a ServiceImpl during construction.
type Option func(*ServiceImpl)

// WithClock overrides the service clock so tests can pin "now" for the
// temporal annotations.
func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

func NewServiceImpl(
	store *session.Store,
	classifier *intent.Classifier,
	resolver *followup.Resolver,
	hoursEng *hours.Engine,
	pipeline *search.Pipeline,
	embedder Embedder,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *ServiceImpl {
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "pois"
	}
	if cfg.DefaultResultCount <= 0 {
		cfg.DefaultResultCount = 10
	}
	s := &ServiceImpl{
		logger:      logger,
		store:       store,
		classifier:  classifier,
		resolver:    resolver,
		hoursEng:    hoursEng,
		pipeline:    pipeline,
		embedder:    embedder,
		cfg:         cfg,
		now:         time.Now,
		lastResults: cache.New(types.DefaultSessionTTL, time.Hour),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover handles one conversational turn.
func (s *ServiceImpl) Discover(ctx context.Context, req types.DiscoverRequest) (*types.DiscoverResponse, error) {
	ctx, span := otel.Tracer("DiscoveryService").Start(ctx, "Discover")
	defer span.End()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty: %w", types.ErrValidation)
	}

	sessionID := s.resolveSessionID(ctx, req)
	span.SetAttributes(attribute.String("session.id", sessionID.String()))

	// One turn per session at a time; other sessions stay freely concurrent.
	release := s.store.Acquire(sessionID)
	defer release()

	sess := s.store.Get(ctx, sessionID)
	detected := s.classifier.Classify(query)

	previous := s.previousResults(ctx, sessionID, sess)
	resolution := s.resolver.Resolve(followup.Input{
		Query:           query,
		Intent:          detected,
		Session:         sess,
		PreviousResults: previous,
	})

	var (
		results []types.ScoredPOI
		total   int
	)
	if len(resolution.POIs) > 0 {
		// Short-circuit: the turn refers to POIs already on the table.
		results = resolution.POIs
		total = len(results)
		span.SetAttributes(attribute.String("followup.rule", resolution.Rule))
	} else {
		var err error
		results, total, err = s.freshSearch(ctx, req, query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Search failed")
			return nil, err
		}
	}

	now := s.now()
	for i := range results {
		results[i].OpeningStatus = s.hoursEng.GetOpeningStatus(results[i].POI, now)
	}

	summary := s.summarize(query, results, resolution.IsFollowUp)
	s.recordTurn(ctx, sessionID, query, summary, results)

	span.SetAttributes(
		attribute.Int("results.count", len(results)),
		attribute.Bool("followup", resolution.IsFollowUp),
	)
	span.SetStatus(codes.Ok, "Turn completed")

	return &types.DiscoverResponse{
		SessionID:           sessionID,
		ResolvedPOIs:        results,
		TextualSummary:      summary,
		DetectedIntent:      detected,
		TotalCandidateCount: total,
		IsFollowUp:          resolution.IsFollowUp,
	}, nil
}

// resolveSessionID reuses a live session or creates a fresh one. A stale or
// unknown id silently starts a new conversation rather than failing the turn.
func (s *ServiceImpl) resolveSessionID(ctx context.Context, req types.DiscoverRequest) uuid.UUID {
	if req.SessionID != nil {
		if sess := s.store.Get(ctx, *req.SessionID); sess != nil {
			return sess.ID
		}
		s.logger.DebugContext(ctx, "stale session id, starting fresh",
			slog.String("session_id", req.SessionID.String()))
	}
	return s.store.Create(ctx, req.UserID)
}

func (s *ServiceImpl) freshSearch(ctx context.Context, req types.DiscoverRequest, query string) ([]types.ScoredPOI, int, error) {
	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("query embedding: %w: %v", types.ErrUpstream, err)
	}

	collection := req.Collection
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}
	k := req.MaxResults
	if k <= 0 {
		k = s.cfg.DefaultResultCount
	}
	return s.pipeline.Search(ctx, collection, query, vector, k)
}

// recordTurn appends the user and assistant turns, grows the displayed set
// and replaces the last-displayed list when this turn surfaced POIs.
func (s *ServiceImpl) recordTurn(ctx context.Context, sessionID uuid.UUID, query, summary string, results []types.ScoredPOI) {
	poiIDs := make([]uuid.UUID, 0, len(results))
	pois := make([]types.POIDetailedInfo, 0, len(results))
	for _, r := range results {
		poiIDs = append(poiIDs, r.POI.ID)
		pois = append(pois, r.POI)
	}

	s.store.AddTurn(ctx, sessionID, types.RoleUser, query, nil)
	s.store.AddTurn(ctx, sessionID, types.RoleAssistant, summary, poiIDs)
	if len(poiIDs) > 0 {
		s.store.Update(ctx, sessionID, types.SessionUpdate{LastDisplayedPOIIDs: poiIDs})
		s.lastResults.Set(sessionID.String(), pois, cache.DefaultExpiration)
	}
}

// previousResults returns the POI records shown on the session's last turn.
// The in-process cache is the fast path; after a restart (or cache expiry) the
// records are rebuilt from the session's persisted id list so follow-ups
// survive the process, not just the cache.
func (s *ServiceImpl) previousResults(ctx context.Context, sessionID uuid.UUID, sess *types.Session) []types.POIDetailedInfo {
	if v, found := s.lastResults.Get(sessionID.String()); found {
		if pois, ok := v.([]types.POIDetailedInfo); ok {
			return pois
		}
	}

	if sess == nil || len(sess.LastDisplayedPOIIDs) == 0 {
		return nil
	}
	pois, err := s.pipeline.FetchByIDs(ctx, sess.LastDisplayedPOIIDs)
	if err != nil {
		// Degrade to a fresh search rather than failing the turn.
		s.logger.WarnContext(ctx, "failed to rehydrate previous results",
			slog.String("session_id", sessionID.String()), slog.Any("error", err))
		return nil
	}
	if len(pois) > 0 {
		s.lastResults.Set(sessionID.String(), pois, cache.DefaultExpiration)
	}
	return pois
}

// EndSession deletes a conversation explicitly. Returns false if the session
// was already gone.
func (s *ServiceImpl) EndSession(ctx context.Context, sessionID uuid.UUID) bool {
	s.lastResults.Delete(sessionID.String())
	return s.store.Delete(ctx, sessionID)
}

// summarize renders the deterministic response text; prose generation is out
// of scope.
func (s *ServiceImpl) summarize(query string, results []types.ScoredPOI, isFollowUp bool) string {
	if len(results) == 0 {
		return fmt.Sprintf("No places found for %q.", query)
	}
	if isFollowUp && len(results) == 1 {
		top := results[0]
		status := top.OpeningStatus
		if status == "" {
			status = hours.StatusUnavailable
		}
		return fmt.Sprintf("%s: %s.", top.POI.Name, status)
	}
	top := results[0]
	return fmt.Sprintf("Found %d places for %q. Top match: %s (%s).",
		len(results), query, top.POI.Name, top.POI.Category)
}

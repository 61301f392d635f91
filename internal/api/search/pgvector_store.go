package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// PGXPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

var _ Store = (*PgvectorStore)(nil)

// PgvectorStore serves embedding queries from the points_of_interest table
// using pgvector cosine distance. Rows are normalized into POIDetailedInfo
// here so no heterogeneous metadata shape escapes the boundary.
type PgvectorStore struct {
	pgpool    PGXPool
	logger    *slog.Logger
	connected atomic.Bool
}

func NewPgvectorStore(pgpool PGXPool, logger *slog.Logger) *PgvectorStore {
	return &PgvectorStore{pgpool: pgpool, logger: logger}
}

// Connect verifies the pool is reachable and marks the store usable. Query
// before a successful Connect fails with ErrNotConnected.
func (s *PgvectorStore) Connect(ctx context.Context) error {
	if err := s.pgpool.Ping(ctx); err != nil {
		return fmt.Errorf("pgvector store connect: %w", err)
	}
	s.connected.Store(true)
	s.logger.InfoContext(ctx, "pgvector store connected")
	return nil
}

// Query returns the k nearest POIs to the query vector within a collection,
// ordered by cosine distance.
func (s *PgvectorStore) Query(ctx context.Context, collection string, vector []float32, k int) (*QueryResult, error) {
	ctx, span := otel.Tracer("PgvectorStore").Start(ctx, "Query", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("embedding.dimension", len(vector)),
		attribute.Int("k", k),
	))
	defer span.End()

	if !s.connected.Load() {
		return nil, types.ErrNotConnected
	}

	l := s.logger.With(slog.String("method", "Query"), slog.String("collection", collection))

	query := `
        SELECT
            id,
            name,
            category,
            subcategory,
            ST_X(location::geometry) AS longitude,
            ST_Y(location::geometry) AS latitude,
            rating,
            review_count,
            description,
            opening_hours_calendar,
            opening_hours,
            embedding <=> $1::vector AS distance
        FROM points_of_interest
        WHERE embedding IS NOT NULL AND collection = $2
        ORDER BY embedding <=> $1::vector
        LIMIT $3
    `

	rows, err := s.pgpool.Query(ctx, query, vectorLiteral(vector), collection, k)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query similar POIs", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to search similar POIs: %w", err)
	}
	defer rows.Close()

	result := &QueryResult{}
	for rows.Next() {
		var (
			poi       types.POIDetailedInfo
			subcat    *string
			document  *string
			calendar  *string
			hoursJSON []byte
			distance  float64
		)
		err := rows.Scan(
			&poi.ID,
			&poi.Name,
			&poi.Category,
			&subcat,
			&poi.Longitude,
			&poi.Latitude,
			&poi.Rating,
			&poi.ReviewCount,
			&document,
			&calendar,
			&hoursJSON,
			&distance,
		)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan similar POI row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan similar POI row: %w", err)
		}

		if subcat != nil {
			poi.Subcategory = *subcat
		}
		if calendar != nil {
			poi.OpeningHoursCalendar = *calendar
		}
		if len(hoursJSON) > 0 {
			if err := json.Unmarshal(hoursJSON, &poi.OpeningHours); err != nil {
				l.WarnContext(ctx, "Unparseable opening_hours metadata, dropping",
					slog.String("poi_id", poi.ID.String()), slog.Any("error", err))
			}
		}

		doc := ""
		if document != nil {
			doc = *document
		}
		result.IDs = append(result.IDs, poi.ID)
		result.Documents = append(result.Documents, doc)
		result.Metadatas = append(result.Metadatas, poi.Metadata)
		result.Distances = append(result.Distances, distance)
		result.POIs = append(result.POIs, poi)
	}
	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating similar POI rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating similar POI rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(result.POIs)))
	span.SetStatus(codes.Ok, "Similar POIs found")
	return result, nil
}

// FetchByIDs loads the POI records for the given ids, preserving the input
// order. Ids with no row are silently absent from the result.
func (s *PgvectorStore) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]types.POIDetailedInfo, error) {
	ctx, span := otel.Tracer("PgvectorStore").Start(ctx, "FetchByIDs", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	if !s.connected.Load() {
		return nil, types.ErrNotConnected
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
        SELECT
            id,
            name,
            category,
            subcategory,
            ST_X(location::geometry) AS longitude,
            ST_Y(location::geometry) AS latitude,
            rating,
            review_count,
            opening_hours_calendar,
            opening_hours
        FROM points_of_interest
        WHERE id = ANY($1)
    `

	rows, err := s.pgpool.Query(ctx, query, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch POIs by id", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to fetch POIs by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]types.POIDetailedInfo, len(ids))
	for rows.Next() {
		var (
			poi       types.POIDetailedInfo
			subcat    *string
			calendar  *string
			hoursJSON []byte
		)
		err := rows.Scan(
			&poi.ID,
			&poi.Name,
			&poi.Category,
			&subcat,
			&poi.Longitude,
			&poi.Latitude,
			&poi.Rating,
			&poi.ReviewCount,
			&calendar,
			&hoursJSON,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan POI row: %w", err)
		}
		if subcat != nil {
			poi.Subcategory = *subcat
		}
		if calendar != nil {
			poi.OpeningHoursCalendar = *calendar
		}
		if len(hoursJSON) > 0 {
			if err := json.Unmarshal(hoursJSON, &poi.OpeningHours); err != nil {
				s.logger.WarnContext(ctx, "Unparseable opening_hours metadata, dropping",
					slog.String("poi_id", poi.ID.String()), slog.Any("error", err))
			}
		}
		byID[poi.ID] = poi
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating POI rows: %w", err)
	}

	// The caller's id order is the conversational display order; keep it.
	pois := make([]types.POIDetailedInfo, 0, len(ids))
	for _, id := range ids {
		if poi, ok := byID[id]; ok {
			pois = append(pois, poi)
		}
	}
	span.SetAttributes(attribute.Int("results.count", len(pois)))
	span.SetStatus(codes.Ok, "POIs fetched")
	return pois, nil
}

// ListCollections returns the distinct collection names present in storage.
func (s *PgvectorStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := otel.Tracer("PgvectorStore").Start(ctx, "ListCollections")
	defer span.End()

	if !s.connected.Load() {
		return nil, types.ErrNotConnected
	}

	rows, err := s.pgpool.Query(ctx, `SELECT DISTINCT collection FROM points_of_interest ORDER BY collection`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan collection name: %w", err)
		}
		collections = append(collections, name)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}
	span.SetStatus(codes.Ok, "Collections listed")
	return collections, nil
}

// Count returns the number of POIs stored in a collection.
func (s *PgvectorStore) Count(ctx context.Context, collection string) (int, error) {
	ctx, span := otel.Tracer("PgvectorStore").Start(ctx, "Count", trace.WithAttributes(
		attribute.String("collection", collection),
	))
	defer span.End()

	if !s.connected.Load() {
		return 0, types.ErrNotConnected
	}

	var count int
	err := s.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM points_of_interest WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count collection %q: %w", collection, err)
	}
	span.SetStatus(codes.Ok, "Collection counted")
	return count, nil
}

// vectorLiteral renders a []float32 in pgvector's input syntax.
func vectorLiteral(vector []float32) string {
	strs := make([]string, len(vector))
	for i, v := range vector {
		strs[i] = fmt.Sprintf("%f", v)
	}
	return fmt.Sprintf("[%s]", strings.Join(strs, ","))
}

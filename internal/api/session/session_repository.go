package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// Repository is the persistent backing store for sessions: key-value CRUD
// with TTL semantics over a JSON-serializable context blob.
type Repository interface {
	Save(ctx context.Context, sess *types.Session) error
	Load(ctx context.Context, id uuid.UUID) (*types.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// PGXPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository persists sessions as JSONB blobs keyed by session id
// with an expires_at column for the TTL.
type PostgresRepository struct {
	pgpool PGXPool
	logger *slog.Logger
}

func NewPostgresRepository(pgpool PGXPool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{pgpool: pgpool, logger: logger}
}

func (r *PostgresRepository) Save(ctx context.Context, sess *types.Session) error {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "Save", trace.WithAttributes(
		attribute.String("session.id", sess.ID.String()),
	))
	defer span.End()

	blob, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
        INSERT INTO discovery_sessions (id, context, expires_at, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET context = EXCLUDED.context,
            expires_at = EXCLUDED.expires_at,
            updated_at = EXCLUDED.updated_at
    `
	_, err = r.pgpool.Exec(ctx, query, sess.ID, blob, sess.ExpiresAt, sess.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session save failed")
		return fmt.Errorf("failed to save session: %w", err)
	}
	span.SetStatus(codes.Ok, "Session saved")
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "Load", trace.WithAttributes(
		attribute.String("session.id", id.String()),
	))
	defer span.End()

	var blob []byte
	err := r.pgpool.QueryRow(ctx,
		`SELECT context FROM discovery_sessions WHERE id = $1 AND expires_at > now()`, id).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "Session not found")
		return nil, fmt.Errorf("session %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to load session", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.DisplayedPOIIDs == nil {
		sess.DisplayedPOIIDs = make(map[uuid.UUID]bool)
	}
	span.SetStatus(codes.Ok, "Session loaded")
	return &sess, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("session.id", id.String()),
	))
	defer span.End()

	_, err := r.pgpool.Exec(ctx, `DELETE FROM discovery_sessions WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	span.SetStatus(codes.Ok, "Session deleted")
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := otel.Tracer("SessionRepository").Start(ctx, "DeleteExpired")
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM discovery_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted := int(tag.RowsAffected())
	span.SetAttributes(attribute.Int("deleted", deleted))
	span.SetStatus(codes.Ok, "Expired sessions deleted")
	return deleted, nil
}

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// Store keeps conversation sessions in memory and writes them through to the
// backing repository when one is configured. All operations are non-throwing
// for the missing-session case: callers branch on the returned bool or nil.
//
// Different sessions are freely concurrent; mutations to the same session are
// serialized by a per-session mutex so two simultaneous turns against one id
// cannot produce a lost update.
type Store struct {
	logger *slog.Logger
	repo   Repository
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*types.Session

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex

	sweepDeletedTotal metric.Int64Counter
}

// StoreOption mutates a Store during construction.
type StoreOption func(*Store)

// WithTTL overrides the default 24h session lifetime.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the store's time source for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore builds a session store. repo may be nil for memory-only operation.
func NewStore(repo Repository, logger *slog.Logger, opts ...StoreOption) *Store {
	meter := otel.GetMeterProvider().Meter("session")
	sweepDeleted, _ := meter.Int64Counter("session_sweep_deleted_total",
		metric.WithDescription("Total sessions removed by the expiry sweep"))

	s := &Store{
		logger:            logger,
		repo:              repo,
		ttl:               types.DefaultSessionTTL,
		now:               time.Now,
		sessions:          make(map[uuid.UUID]*types.Session),
		locks:             make(map[uuid.UUID]*sync.Mutex),
		sweepDeletedTotal: sweepDeleted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire takes the per-session mutex and returns its release func. The
// discovery service holds it for a whole turn so read-modify-write across
// classify/search/update stays atomic per session.
func (s *Store) Acquire(id uuid.UUID) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Create initializes an empty session and returns its id.
func (s *Store) Create(ctx context.Context, userID *uuid.UUID) uuid.UUID {
	now := s.now()
	sess := &types.Session{
		ID:              uuid.New(),
		UserID:          userID,
		DisplayedPOIIDs: make(map[uuid.UUID]bool),
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.persist(ctx, sess)
	s.logger.DebugContext(ctx, "session created", slog.String("session_id", sess.ID.String()))
	return sess.ID
}

// Get returns the session or nil. A session past its expiry is treated as
// not found. Memory misses fall back to the backing repository and
// re-hydrate.
func (s *Store) Get(ctx context.Context, id uuid.UUID) *types.Session {
	now := s.now()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok && s.repo != nil {
		loaded, err := s.repo.Load(ctx, id)
		if err == nil && loaded != nil {
			s.mu.Lock()
			s.sessions[id] = loaded
			s.mu.Unlock()
			sess, ok = loaded, true
		}
	}

	if !ok || sess.Expired(now) {
		return nil
	}
	return sess
}

// Update merges the partial fields into the session. Returns false, without
// error, if the session is missing or expired.
func (s *Store) Update(ctx context.Context, id uuid.UUID, partial types.SessionUpdate) bool {
	sess := s.Get(ctx, id)
	if sess == nil {
		return false
	}

	s.mu.Lock()
	if partial.LastDisplayedPOIIDs != nil {
		sess.LastDisplayedPOIIDs = partial.LastDisplayedPOIIDs
	}
	if partial.ExpiresAt != nil {
		sess.ExpiresAt = *partial.ExpiresAt
	}
	sess.UpdatedAt = s.now()
	s.mu.Unlock()

	s.persist(ctx, sess)
	return true
}

// AddTurn appends a turn and unions its POI ids into the displayed set,
// which never shrinks while the session is alive.
func (s *Store) AddTurn(ctx context.Context, id uuid.UUID, role types.MessageRole, content string, poiIDs []uuid.UUID) bool {
	sess := s.Get(ctx, id)
	if sess == nil {
		return false
	}

	s.mu.Lock()
	sess.ConversationHistory = append(sess.ConversationHistory, types.ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		POIIDs:    poiIDs,
	})
	for _, poiID := range poiIDs {
		sess.DisplayedPOIIDs[poiID] = true
	}
	sess.TurnCount++
	sess.UpdatedAt = s.now()
	s.mu.Unlock()

	s.persist(ctx, sess)
	return true
}

// Delete removes the session explicitly.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()

	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to delete persisted session",
				slog.String("session_id", id.String()), slog.Any("error", err))
		}
	}
	return ok
}

// Sweep deletes every expired session and reports the count to the audit
// log. It runs independently of request traffic.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []uuid.UUID
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	s.locksMu.Lock()
	for _, id := range expired {
		delete(s.locks, id)
	}
	s.locksMu.Unlock()

	count := len(expired)
	if s.repo != nil {
		persisted, err := s.repo.DeleteExpired(ctx, now)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to sweep persisted sessions", slog.Any("error", err))
		} else if persisted > count {
			count = persisted
		}
	}

	s.sweepDeletedTotal.Add(ctx, int64(count))
	s.logger.InfoContext(ctx, "session sweep completed", slog.Int("deleted", count))
	return count
}

// RunSweeper loops Sweep on the given interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// persist writes the session through to the repository. Persistence failures
// degrade to memory-only operation; they never fail the turn.
func (s *Store) persist(ctx context.Context, sess *types.Session) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to persist session, continuing in memory",
			slog.String("session_id", sess.ID.String()), slog.Any("error", err))
	}
}

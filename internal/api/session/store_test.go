package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source for pinning expiry behavior.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *fakeClock) *Store {
	return NewStore(nil, discardLogger(), WithClock(clock.Now))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)

	id := store.Create(ctx, nil)

	sess := store.Get(ctx, id)
	require.NotNil(t, sess)
	assert.Equal(t, id, sess.ID)
	assert.Nil(t, sess.UserID)
	assert.Zero(t, sess.TurnCount)
	assert.Empty(t, sess.ConversationHistory)
	assert.Equal(t, clock.Now().Add(types.DefaultSessionTTL), sess.ExpiresAt)
}

func TestGet_UnknownSession(t *testing.T) {
	store := newTestStore(newFakeClock())
	assert.Nil(t, store.Get(context.Background(), uuid.New()))
}

func TestGet_ExpiredSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(nil, discardLogger(), WithClock(clock.Now), WithTTL(time.Hour))

	id := store.Create(ctx, nil)
	require.NotNil(t, store.Get(ctx, id))

	// Expiry is exclusive: alive strictly before ExpiresAt only.
	clock.Advance(time.Hour)
	assert.Nil(t, store.Get(ctx, id))
}

func TestAddTurn_DisplayedSetOnlyGrows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	id := store.Create(ctx, nil)

	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.True(t, store.AddTurn(ctx, id, types.RoleAssistant, "here are two places", []uuid.UUID{a, b}))
	require.True(t, store.AddTurn(ctx, id, types.RoleAssistant, "one more", []uuid.UUID{c}))
	// Re-showing an id must not shrink or duplicate the set.
	require.True(t, store.AddTurn(ctx, id, types.RoleAssistant, "again", []uuid.UUID{a}))

	sess := store.Get(ctx, id)
	require.NotNil(t, sess)
	assert.Equal(t, 3, sess.TurnCount)
	assert.Len(t, sess.ConversationHistory, 3)
	assert.Len(t, sess.DisplayedPOIIDs, 3)
	for _, poiID := range []uuid.UUID{a, b, c} {
		assert.True(t, sess.DisplayedPOIIDs[poiID])
	}
}

func TestAddTurn_MissingSession(t *testing.T) {
	store := newTestStore(newFakeClock())
	assert.False(t, store.AddTurn(context.Background(), uuid.New(), types.RoleUser, "hello", nil))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	id := store.Create(ctx, nil)

	last := []uuid.UUID{uuid.New(), uuid.New()}
	ok := store.Update(ctx, id, types.SessionUpdate{LastDisplayedPOIIDs: last})
	require.True(t, ok)

	sess := store.Get(ctx, id)
	require.NotNil(t, sess)
	assert.Equal(t, last, sess.LastDisplayedPOIIDs)

	// Nil fields leave existing values untouched.
	newExpiry := clock.Now().Add(48 * time.Hour)
	require.True(t, store.Update(ctx, id, types.SessionUpdate{ExpiresAt: &newExpiry}))
	sess = store.Get(ctx, id)
	assert.Equal(t, last, sess.LastDisplayedPOIIDs)
	assert.Equal(t, newExpiry, sess.ExpiresAt)
}

func TestUpdate_MissingSessionReturnsFalse(t *testing.T) {
	store := newTestStore(newFakeClock())
	ok := store.Update(context.Background(), uuid.New(), types.SessionUpdate{})
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())
	id := store.Create(ctx, nil)

	assert.True(t, store.Delete(ctx, id))
	assert.Nil(t, store.Get(ctx, id))
	assert.False(t, store.Delete(ctx, id))
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(nil, discardLogger(), WithClock(clock.Now), WithTTL(time.Hour))

	expired := store.Create(ctx, nil)
	clock.Advance(30 * time.Minute)
	alive := store.Create(ctx, nil)
	clock.Advance(45 * time.Minute)

	deleted := store.Sweep(ctx)

	assert.Equal(t, 1, deleted)
	assert.Nil(t, store.Get(ctx, expired))
	assert.NotNil(t, store.Get(ctx, alive))
}

func TestAcquire_SerializesSameSession(t *testing.T) {
	store := newTestStore(newFakeClock())
	id := uuid.New()

	release := store.Acquire(id)

	acquired := make(chan struct{})
	go func() {
		r := store.Acquire(id)
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the first holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never proceeded after release")
	}
}

func TestConcurrentTurnsOnDistinctSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeClock())

	const n = 16
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = store.Create(ctx, nil)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			release := store.Acquire(id)
			defer release()
			store.AddTurn(ctx, id, types.RoleUser, "hi", nil)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		sess := store.Get(ctx, id)
		require.NotNil(t, sess)
		assert.Equal(t, 1, sess.TurnCount)
	}
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*SessionStore, *testutil.TestTimeProvider) {
	clock := testutil.NewTestTimeProvider(testutil.TestTime())
	return NewSessionStore(WithClock(clock.Now)), clock
}

func TestSessionStore_InitAndGet(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))

	rec, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "github", rec.Provider)
	assert.Empty(t, rec.Token)
	assert.Equal(t, int64(60), rec.TTL)
}

func TestSessionStore_InitRejectsCollision(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))
	err := store.InitSession(ctx, "facebook", "s1", 60)
	require.Error(t, err)
	assert.True(t, errorsx.IsConflict(err))

	rec, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "github", rec.Provider, "original record must survive the collision")
}

func TestSessionStore_InitAfterExpiryReplaces(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 10))
	clock.AddTime(11 * time.Second)
	require.NoError(t, store.InitSession(ctx, "facebook", "s1", 10))

	rec, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "facebook", rec.Provider)
}

func TestSessionStore_InitValidation(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	assert.True(t, errorsx.IsValidation(store.InitSession(ctx, "github", "", 60)))
	assert.True(t, errorsx.IsValidation(store.InitSession(ctx, "github", "s1", 0)))
	assert.True(t, errorsx.IsValidation(store.InitSession(ctx, "github", "s1", oauth.MaxTTL+1)))
}

func TestSessionStore_BeginWithMaxTTLStaysLive(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))
	assert.True(t, errorsx.IsValidation(store.BeginSession(ctx, "s1", "tok", oauth.MaxTTL+1)))
	require.NoError(t, store.BeginSession(ctx, "s1", "tok", oauth.MaxTTL))

	rec, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok, "a long-lived token must not land in the past")
	assert.Equal(t, "tok", rec.Token)
	assert.Equal(t, oauth.MaxTTL, rec.TTL)
}

func TestSessionStore_CheckSession(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	ttl, err := store.CheckSession(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, oauth.TTLNotFound, ttl)

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))
	clock.AddTime(1500 * time.Millisecond)

	ttl, err = store.CheckSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(59), ttl)

	clock.AddTime(time.Minute)
	ttl, err = store.CheckSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, oauth.TTLNotFound, ttl)
	assert.Equal(t, 0, store.Len(), "expired entry should be evicted on access")
}

func TestSessionStore_BeginSession(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))
	clock.AddTime(30 * time.Second)
	require.NoError(t, store.BeginSession(ctx, "s1", "tok", 3600))

	rec, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "github", rec.Provider)
	assert.Equal(t, "tok", rec.Token)
	assert.Equal(t, int64(3600), rec.TTL)
}

func TestSessionStore_BeginMissing(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	err := store.BeginSession(ctx, "missing", "tok", 60)
	assert.True(t, errorsx.IsSessionNotFound(err))

	require.NoError(t, store.InitSession(ctx, "github", "s1", 5))
	clock.AddTime(5 * time.Second)
	err = store.BeginSession(ctx, "s1", "tok", 60)
	assert.True(t, errorsx.IsSessionNotFound(err), "expired record must not be resurrected")
}

func TestSessionStore_EndSessionIdempotent(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "s1", 60))
	require.NoError(t, store.EndSession(ctx, "s1"))
	require.NoError(t, store.EndSession(ctx, "s1"))
	require.NoError(t, store.EndSession(ctx, "never-existed"))

	_, ok, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_ConcurrentInitSameID(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.InitSession(ctx, "github", "same", 60)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errorsx.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
}

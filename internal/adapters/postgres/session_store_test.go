package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/mattcg/oauth-sessions/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_InitAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "pg-init", 120))

	rec, ok, err := store.GetSession(ctx, "pg-init")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "github", rec.Provider)
	assert.Empty(t, rec.Token)
	assert.InDelta(t, 120, rec.TTL, 2)

	ttl, err := store.CheckSession(ctx, "pg-init")
	require.NoError(t, err)
	assert.InDelta(t, 120, ttl, 2)
}

func TestSessionStore_InitRejectsCollision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "pg-dup", 120))
	err := store.InitSession(ctx, "facebook", "pg-dup", 120)
	require.Error(t, err)
	assert.True(t, errorsx.IsConflict(err))
	assert.Equal(t, "id", errorsx.GetField(err))
}

func TestSessionStore_InitReplacesExpiredRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO oauth_sessions (id, provider, expires_at) VALUES ($1, $2, now() - interval '1 minute')`,
		"pg-stale", "github")
	require.NoError(t, err)

	require.NoError(t, store.InitSession(ctx, "facebook", "pg-stale", 60))

	rec, ok, err := store.GetSession(ctx, "pg-stale")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "facebook", rec.Provider)
}

func TestSessionStore_Missing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	ttl, err := store.CheckSession(ctx, "pg-missing")
	require.NoError(t, err)
	assert.Equal(t, oauth.TTLNotFound, ttl)

	_, ok, err := store.GetSession(ctx, "pg-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	err = store.BeginSession(ctx, "pg-missing", "tok", 60)
	assert.True(t, errorsx.IsSessionNotFound(err))
}

func TestSessionStore_BeginSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "pg-begin", 60))
	require.NoError(t, store.BeginSession(ctx, "pg-begin", "access-token", 7200))

	rec, ok, err := store.GetSession(ctx, "pg-begin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-token", rec.Token)
	assert.InDelta(t, 7200, rec.TTL, 2)
}

func TestSessionStore_EndSessionIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, store.InitSession(ctx, "github", "pg-end", 60))
	require.NoError(t, store.EndSession(ctx, "pg-end"))
	require.NoError(t, store.EndSession(ctx, "pg-end"))

	_, ok, err := store.GetSession(ctx, "pg-end")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_Purge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewSessionStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO oauth_sessions (id, provider, expires_at) VALUES
			('pg-old-1', 'github', now() - interval '1 hour'),
			('pg-old-2', 'github', now() - interval '1 second')`)
	require.NoError(t, err)
	require.NoError(t, store.InitSession(ctx, "github", "pg-live", 60))

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := store.GetSession(ctx, "pg-live")
	require.NoError(t, err)
	assert.True(t, ok)
}

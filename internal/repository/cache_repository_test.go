package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "announcements:feed:public", []string{"a1", "a2"}, time.Minute))
	var got []string
	require.NoError(t, repo.Get(ctx, "announcements:feed:public", &got))
	assert.Equal(t, []string{"a1", "a2"}, got)

	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "announcements:feed:public", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "announcements:feed:public", 1, 0))
	require.NoError(t, repo.Set(ctx, "announcements:feed:banner", 1, 0))
	require.NoError(t, repo.Set(ctx, "other:key", 1, 0))

	removed, err := repo.DeleteByPattern(ctx, "announcements:feed:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, mr.Exists("announcements:feed:public"))
	assert.True(t, mr.Exists("other:key"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	removed, err := repo.DeleteByPattern(ctx, "*")
	assert.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, repo.Ping(ctx))
}

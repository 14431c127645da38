package repository

import (
	"context"
	"testing"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBannerRepository_ListActive(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := testutil.NewSQLiteDB(t)
	repo := NewBannerRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)
	expired := now.Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "second", IsActive: true, SortOrder: 2, StartDate: past}))
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "first", IsActive: true, SortOrder: 1, StartDate: past, EndDate: &future}))
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "inactive", IsActive: false, StartDate: past}))
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "scheduled", IsActive: true, StartDate: future}))
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "ended", IsActive: true, StartDate: past, EndDate: &expired}))

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Title)
	assert.Equal(t, "second", active[1].Title)
	assert.True(t, mr.Exists(cache.ActiveBannersKey))

	// Any write drops the cached list.
	require.NoError(t, repo.Delete(ctx, active[0].ID))
	assert.False(t, mr.Exists(cache.ActiveBannersKey))

	active, err = repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)

	err = repo.Delete(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestBannerRepository_ListActiveFollowsScheduleWhenCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := testutil.NewSQLiteDB(t)
	repo := NewBannerRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	endsSoon := now.Add(time.Minute)
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "flash sale", IsActive: true, StartDate: now.Add(-time.Hour), EndDate: &endsSoon}))
	require.NoError(t, repo.Create(ctx, &models.Banner{Title: "launch", IsActive: true, StartDate: now.Add(2 * time.Minute)}))

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "flash sale", active[0].Title)
	require.True(t, mr.Exists(cache.ActiveBannersKey))

	later := now.Add(5 * time.Minute)
	active, err = repo.ListActive(ctx, later)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.ActiveBannersKey), "served from the cached list")
	require.Len(t, active, 1)
	assert.Equal(t, "launch", active[0].Title)
}

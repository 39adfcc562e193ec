//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"covera/internal/policy/cache"
	"covera/internal/policy/models"
	"covera/pkg/testutil/containers"
)

func TestListingCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	listing := cache.NewListing(rc.Client, time.Minute)

	_, hit := listing.Get(ctx)
	require.False(t, hit, "expected cold cache miss")

	p, err := models.NewPolicy("storm", "storm cover", 100, 10, "alice", time.Now())
	require.NoError(t, err)
	p.ID = 1

	listing.Set(ctx, []*models.Policy{p})
	cached, hit := listing.Get(ctx)
	require.True(t, hit)
	require.Len(t, cached, 1)
	require.EqualValues(t, 1, cached[0].ID)
	require.Equal(t, "storm", cached[0].Name)

	require.NoError(t, listing.Invalidate(ctx))
	_, hit = listing.Get(ctx)
	require.False(t, hit, "expected miss after invalidation")
}

func TestNilListingIsNoOp(t *testing.T) {
	var listing *cache.Listing
	ctx := context.Background()

	_, hit := listing.Get(ctx)
	require.False(t, hit)
	listing.Set(ctx, nil)
	require.NoError(t, listing.Invalidate(ctx))
}

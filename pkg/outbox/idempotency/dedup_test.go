package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/redis"
)

func newDedup(t *testing.T, ttl time.Duration) (*Dedup, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	dedup, err := NewDedup(client, ttl)
	require.NoError(t, err)
	dedup.now = func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }
	return dedup, mr
}

func TestDedupClaimOnce(t *testing.T) {
	ctx := context.Background()
	dedup, mr := newDedup(t, time.Hour)
	eventID := uuid.New()

	first, err := dedup.Claim(ctx, "order-notifications", eventID)
	require.NoError(t, err)
	require.True(t, first)

	again, err := dedup.Claim(ctx, "order-notifications", eventID)
	require.NoError(t, err)
	require.False(t, again)

	key := "pf:idempotency:event:order-notifications:" + eventID.String()
	value, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "2026-05-01T09:30:00Z", value)
	require.Equal(t, time.Hour, mr.TTL(key))
}

func TestDedupClaimsAreScopedPerConsumer(t *testing.T) {
	ctx := context.Background()
	dedup, _ := newDedup(t, time.Hour)
	eventID := uuid.New()

	first, err := dedup.Claim(ctx, "order-notifications", eventID)
	require.NoError(t, err)
	require.True(t, first)

	other, err := dedup.Claim(ctx, "review-prompts", eventID)
	require.NoError(t, err)
	require.True(t, other)
}

func TestDedupReleaseAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	dedup, mr := newDedup(t, time.Hour)
	eventID := uuid.New()

	_, err := dedup.Claim(ctx, "review-prompts", eventID)
	require.NoError(t, err)
	require.NoError(t, dedup.Release(ctx, "review-prompts", eventID))

	again, err := dedup.Claim(ctx, "review-prompts", eventID)
	require.NoError(t, err)
	require.True(t, again)

	mr.FastForward(2 * time.Hour)
	expired, err := dedup.Claim(ctx, "review-prompts", eventID)
	require.NoError(t, err)
	require.True(t, expired, "claim should lapse after its ttl")
}

func TestDedupRejectsBadInput(t *testing.T) {
	_, err := NewDedup(nil, time.Hour)
	require.Error(t, err)

	dedup, _ := newDedup(t, time.Hour)
	_, err = NewDedup(dedup.store, 0)
	require.Error(t, err)

	_, err = dedup.Claim(context.Background(), "", uuid.New())
	require.Error(t, err)
	require.Error(t, dedup.Release(context.Background(), "order-notifications", uuid.Nil))
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"example.com/mci/services/delivery/internal/model"
)

func newTestCache(t *testing.T) CacheClient {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisClientWithBackend(client, time.Hour)
}

// The active-set backup round-trips through Redis
func TestActiveDeliveriesRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	deliveries := []*model.Delivery{
		{ID: 1, UserID: "owner-1", DRNumber: "DR1", Status: model.StatusInTransit},
		{ID: 2, UserID: "owner-1", DRNumber: "DR2", Status: model.StatusActive},
	}

	require.NoError(t, c.SetActiveDeliveries(ctx, "owner-1", deliveries))

	cached, err := c.GetActiveDeliveries(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, cached, 2)
	require.Equal(t, "DR1", cached[0].DRNumber)
	require.Equal(t, model.StatusInTransit, cached[0].Status)
}

// A missing backup reads as redis.Nil, not an empty slice
func TestActiveDeliveriesMiss(t *testing.T) {
	c := newTestCache(t)

	_, err := c.GetActiveDeliveries(context.Background(), "nobody")
	require.ErrorIs(t, err, redis.Nil)
}

// Backups are scoped per owner
func TestActiveDeliveriesOwnerScoping(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetActiveDeliveries(ctx, "owner-1", []*model.Delivery{{ID: 1, DRNumber: "DR1"}}))
	require.NoError(t, c.SetActiveDeliveries(ctx, "owner-2", []*model.Delivery{{ID: 2, DRNumber: "DR2"}}))

	cached, err := c.GetActiveDeliveries(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "DR2", cached[0].DRNumber)
}

func TestDeleteActiveDeliveries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetActiveDeliveries(ctx, "owner-1", []*model.Delivery{{ID: 1}}))
	require.NoError(t, c.DeleteActiveDeliveries(ctx, "owner-1"))

	_, err := c.GetActiveDeliveries(ctx, "owner-1")
	require.ErrorIs(t, err, redis.Nil)
}

func TestCustomersRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	customers := []*model.Customer{{ID: 1, Name: "Acme Ltd"}}
	require.NoError(t, c.SetCustomers(ctx, "owner-1", customers))

	cached, err := c.GetCustomers(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "Acme Ltd", cached[0].Name)
}

// A disabled cache behaves as a permanent miss without errors on writes
func TestDisabledClient(t *testing.T) {
	c := NewDisabledClient()
	ctx := context.Background()

	require.NoError(t, c.SetActiveDeliveries(ctx, "owner-1", []*model.Delivery{{ID: 1}}))

	_, err := c.GetActiveDeliveries(ctx, "owner-1")
	require.ErrorIs(t, err, redis.Nil)
}

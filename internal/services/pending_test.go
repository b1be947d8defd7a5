package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/velora/internal/cache"
	"github.com/example/velora/internal/models"
)

func TestPendingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPendingStore(cache.NewMemory(), 30*time.Minute)
	userID := uuid.New()

	_, err := store.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)

	pending := &PendingOrder{
		RazorpayOrderID: "order_abc",
		ChargeAmount:    150.50,
		UserID:          userID.String(),
		Payload:         models.Order{TotalAmount: 150.50},
	}
	require.NoError(t, store.Put(ctx, userID, pending))

	got, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "order_abc", got.RazorpayOrderID)
	assert.Equal(t, 150.50, got.ChargeAmount)
	assert.Equal(t, userID.String(), got.UserID)
	assert.False(t, got.Expired(time.Now()))

	require.NoError(t, store.Delete(ctx, userID))
	_, err = store.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestPendingStoreOverwrite(t *testing.T) {
	// A second checkout initiation replaces the first pending record; the
	// earlier provider order can no longer complete.
	ctx := context.Background()
	store := NewPendingStore(cache.NewMemory(), 30*time.Minute)
	userID := uuid.New()

	require.NoError(t, store.Put(ctx, userID, &PendingOrder{RazorpayOrderID: "order_first", UserID: userID.String()}))
	require.NoError(t, store.Put(ctx, userID, &PendingOrder{RazorpayOrderID: "order_second", UserID: userID.String()}))

	got, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "order_second", got.RazorpayOrderID)
}

func TestPendingStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	store := NewPendingStore(mem, 30*time.Minute)
	userID := uuid.New()

	base := time.Now()
	now := base
	mem.SetClock(func() time.Time { return now })

	require.NoError(t, store.Put(ctx, userID, &PendingOrder{RazorpayOrderID: "order_abc", UserID: userID.String()}))

	now = base.Add(31 * time.Minute)
	_, err := store.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

func TestPendingStoreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	store := NewPendingStore(cache.NewMemory(), 30*time.Minute)
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, store.Put(ctx, alice, &PendingOrder{RazorpayOrderID: "order_alice", UserID: alice.String()}))

	_, err := store.Get(ctx, bob)
	assert.ErrorIs(t, err, ErrNoPendingOrder)
}

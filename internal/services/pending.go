package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/velora/internal/cache"
	"github.com/example/velora/internal/models"
)

const pendingKeyPrefix = "checkout:pending:"

// ErrNoPendingOrder is returned when no pending record exists for the user.
var ErrNoPendingOrder = errors.New("no pending order")

// PendingOrder bridges provider-order creation and durable Order creation.
// It lives in the cache under the owning user's key, so each user holds at
// most one at a time; a new checkout initiation overwrites the previous one.
type PendingOrder struct {
	RazorpayOrderID string       `json:"razorpay_order_id"`
	ChargeAmount    float64      `json:"charge_amount"`
	UserID          string       `json:"user_id"`
	Payload         models.Order `json:"payload"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// Expired reports whether the record passed its absolute expiry. The cache
// TTL matches, so expiry is usually a miss; this check covers clock skew
// between writer and reader.
func (p *PendingOrder) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// PendingStore persists pending orders with a bounded TTL.
type PendingStore struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewPendingStore constructs a PendingStore with the given record TTL.
func NewPendingStore(store cache.Store, ttl time.Duration) *PendingStore {
	return &PendingStore{store: store, ttl: ttl, now: time.Now}
}

// Put writes the user's pending order, replacing any previous one.
func (s *PendingStore) Put(ctx context.Context, userID uuid.UUID, pending *PendingOrder) error {
	pending.ExpiresAt = s.now().Add(s.ttl)
	body, err := json.Marshal(pending)
	if err != nil {
		return errors.Wrap(err, "marshal pending order")
	}
	return s.store.Set(ctx, pendingKeyPrefix+userID.String(), string(body), s.ttl)
}

// Get loads the user's pending order, or ErrNoPendingOrder.
func (s *PendingStore) Get(ctx context.Context, userID uuid.UUID) (*PendingOrder, error) {
	body, err := s.store.Get(ctx, pendingKeyPrefix+userID.String())
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNoPendingOrder
	}
	if err != nil {
		return nil, err
	}

	var pending PendingOrder
	if err := json.Unmarshal([]byte(body), &pending); err != nil {
		return nil, errors.Wrap(err, "unmarshal pending order")
	}
	return &pending, nil
}

// Delete discards the user's pending order, if any.
func (s *PendingStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.store.Del(ctx, pendingKeyPrefix+userID.String())
}

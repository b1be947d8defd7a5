package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/velora/internal/cache"
)

func TestBlacklistRoundTrip(t *testing.T) {
	ctx := context.Background()
	bl := NewBlacklist(cache.NewMemory())

	revoked, err := bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.BlacklistJTI(ctx, "jti-1", time.Hour))

	revoked, err = bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Other identifiers are unaffected.
	revoked, err = bl.IsBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklistEntryExpires(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	bl := NewBlacklist(store)

	base := time.Now()
	now := base
	store.SetClock(func() time.Time { return now })

	require.NoError(t, bl.BlacklistJTI(ctx, "jti-1", time.Minute))

	now = base.Add(2 * time.Minute)
	revoked, err := bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry must not outlive the token")
}

func TestBlacklistEmptyJTI(t *testing.T) {
	ctx := context.Background()
	bl := NewBlacklist(cache.NewMemory())

	require.NoError(t, bl.BlacklistJTI(ctx, "", time.Hour))

	revoked, err := bl.IsBlacklisted(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

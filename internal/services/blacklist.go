package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/example/velora/internal/cache"
)

const blacklistKeyPrefix = "bl:jti:"

// Blacklist records revoked refresh-token identifiers. Entries carry a TTL
// equal to the token's remaining lifetime, so the store never grows beyond
// the set of tokens that could still be replayed.
type Blacklist struct {
	store cache.Store
}

// NewBlacklist constructs a Blacklist over the given store.
func NewBlacklist(store cache.Store) *Blacklist {
	return &Blacklist{store: store}
}

// BlacklistJTI revokes a jti until its natural expiry. A missing jti is a
// no-op: malformed tokens never reach the store.
func (b *Blacklist) BlacklistJTI(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return b.store.Set(ctx, blacklistKeyPrefix+jti, "1", ttl)
}

// IsBlacklisted reports whether a jti has been revoked. A store failure is
// returned as an error so security-gating callers fail closed rather than
// accepting a possibly revoked token.
func (b *Blacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	value, err := b.store.Get(ctx, blacklistKeyPrefix+jti)
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

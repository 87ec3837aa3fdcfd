package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "blacklist:"

// Denylist records revoked token IDs until their natural expiry.
type Denylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisDenylist struct {
	rdb *redis.Client
}

// NewDenylist returns a Redis-backed denylist. With a nil client revocation
// is a no-op and only tokenVersion invalidates sessions.
func NewDenylist(rdb *redis.Client) Denylist {
	return &redisDenylist{rdb: rdb}
}

func (d *redisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if d.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, denylistPrefix+jti, "1", ttl).Err()
}

func (d *redisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if d.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// CooldownCache implements domain.CooldownCache. Each entry records when a
// user last rebalanced on a chain and expires after the configured cooldown
// period, so a hit always means "still cooling down". The automation
// contract stays authoritative; this only saves RPC round trips.
type CooldownCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.CooldownCache = (*CooldownCache)(nil)

// NewCooldownCache builds a cache whose entries live for ttl, which should
// match the automation contract's cooldown period.
func NewCooldownCache(c *Client, ttl time.Duration) *CooldownCache {
	return &CooldownCache{rdb: c.Underlying(), ttl: ttl}
}

func cooldownKey(user common.Address, chainID uint64) string {
	return fmt.Sprintf("cooldown:%s:%d", strings.ToLower(user.Hex()), chainID)
}

// SetLastRebalance records a rebalance at the given time.
func (c *CooldownCache) SetLastRebalance(ctx context.Context, user common.Address, chainID uint64, at time.Time) error {
	err := c.rdb.Set(ctx, cooldownKey(user, chainID), at.UTC().Format(time.RFC3339Nano), c.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis: set cooldown for %s on chain %d: %w", user.Hex(), chainID, err)
	}
	return nil
}

// LastRebalance returns the recorded rebalance time, or domain.ErrNotFound
// when the entry is absent or has expired.
func (c *CooldownCache) LastRebalance(ctx context.Context, user common.Address, chainID uint64) (time.Time, error) {
	val, err := c.rdb.Get(ctx, cooldownKey(user, chainID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis: get cooldown for %s on chain %d: %w", user.Hex(), chainID, err)
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: malformed cooldown entry for %s on chain %d: %w", user.Hex(), chainID, err)
	}
	return at, nil
}

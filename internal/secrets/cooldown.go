package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/gamelib-auth/internal/utils"
	"github.com/prperemyshlev/gamelib-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// Cooldown enforces a minimum wait between two actions of the same scope and subject
type Cooldown struct {
	redis  *database.Redis
	period time.Duration
	now    func() time.Time
}

// NewCooldown creates a Redis-backed cooldown. A non-positive period disables it.
func NewCooldown(redis *database.Redis, period time.Duration) *Cooldown {
	return &Cooldown{redis: redis, period: period, now: time.Now}
}

// Acquire records the action, or fails with a TooManyRequests domain error
// while the previous action of the same scope and subject is still cooling down.
func (c *Cooldown) Acquire(ctx context.Context, scope, subject string) error {
	if c == nil || c.period <= 0 {
		return nil
	}

	key := fmt.Sprintf("cooldown:%s:%s", scope, subject)
	now := c.now()

	ok, err := c.redis.Client.SetNX(ctx, key, now.UnixMilli(), c.period).Result()
	if err != nil {
		return fmt.Errorf("failed to record cooldown: %w", err)
	}
	if ok {
		return nil
	}

	raw, err := c.redis.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return c.Acquire(ctx, scope, subject)
	}
	if err != nil {
		return fmt.Errorf("failed to read cooldown: %w", err)
	}

	lastMillis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt cooldown record %q: %w", key, err)
	}

	if err := utils.CheckCooldown(time.UnixMilli(lastMillis), c.period, now); err != nil {
		return err
	}

	// The key outlived its period (clock skew); take it over.
	if err := c.redis.Client.Set(ctx, key, now.UnixMilli(), c.period).Err(); err != nil {
		return fmt.Errorf("failed to record cooldown: %w", err)
	}
	return nil
}

// Release forgets the last action so the next Acquire succeeds immediately
func (c *Cooldown) Release(ctx context.Context, scope, subject string) error {
	if c == nil || c.period <= 0 {
		return nil
	}

	key := fmt.Sprintf("cooldown:%s:%s", scope, subject)
	if err := c.redis.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}
	return nil
}

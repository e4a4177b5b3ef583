package user

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/internal/constants"
	"pulse/internal/logger"
)

// Cooldown limits how often a confirmation mail can be sent to a user.
type Cooldown interface {
	// Acquire reports whether a new mail may be sent now and, if so,
	// starts the cooldown.
	Acquire(ctx context.Context, userID string) (bool, error)
	// Release ends a cooldown whose mail was never sent.
	Release(ctx context.Context, userID string)
}

type RedisCooldown struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCooldown(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCooldown {
	if ttl <= 0 {
		ttl = constants.ConfirmationCooldown
	}
	return &RedisCooldown{client: client, ttl: ttl, logger: log}
}

// Acquire fails open: when Redis is unavailable the mail is allowed.
func (c *RedisCooldown) Acquire(ctx context.Context, userID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, constants.CacheKeyPrefixConfirmation+userID, time.Now().Unix(), c.ttl).Result()
	if err != nil {
		c.logger.WarnwCtx(ctx, "Confirmation cooldown unavailable, allowing request", "error", err)
		return true, nil
	}
	return ok, nil
}

func (c *RedisCooldown) Release(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, constants.CacheKeyPrefixConfirmation+userID).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Failed to release confirmation cooldown", "error", err)
	}
}

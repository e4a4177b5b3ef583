// Package preferences persists the period and time bucket chosen for each
// dashboard view of a user.
package preferences

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pulse/internal/constants"
	"pulse/internal/filters"
	"pulse/internal/logger"
	"pulse/pkg/circuitbreaker"
	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type Store interface {
	// All returns the valid preferences of userID. Invalid entries are
	// dropped silently.
	All(ctx context.Context, userID string) (map[string]filters.ViewPreference, error)
	Get(ctx context.Context, userID, view string) (filters.ViewPreference, bool, error)
	// Set rejects preferences that would be dropped on read.
	Set(ctx context.Context, userID, view string, pref filters.ViewPreference) error
	Delete(ctx context.Context, userID, view string) error
}

// RedisStore keeps one hash per user, keyed by view id, holding JSON
// encoded preferences.
type RedisStore struct {
	client  *redis.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewRedisStore(client *redis.Client, breaker *circuitbreaker.Wrapper, log logger.Logger) *RedisStore {
	return &RedisStore{client: client, breaker: breaker, logger: log}
}

func key(userID string) string {
	return constants.CacheKeyPrefixViewPrefs + userID
}

func (s *RedisStore) All(ctx context.Context, userID string) (map[string]filters.ViewPreference, error) {
	raw, err := circuitbreaker.Do(ctx, s.breaker, func(ctx context.Context) (map[string]string, error) {
		return s.client.HGetAll(ctx, key(userID)).Result()
	})
	if err != nil {
		return nil, unavailable(err)
	}

	prefs, dropped := decodeHash(raw)
	if dropped > 0 {
		metrics.AddPreferenceEntriesDropped(dropped)
		s.logger.DebugwCtx(ctx, "Dropped invalid view preferences", "count", dropped)
	}
	return prefs, nil
}

func (s *RedisStore) Get(ctx context.Context, userID, view string) (filters.ViewPreference, bool, error) {
	raw, err := circuitbreaker.Do(ctx, s.breaker, func(ctx context.Context) (string, error) {
		v, err := s.client.HGet(ctx, key(userID), view).Result()
		if err == redis.Nil {
			return "", nil
		}
		return v, err
	})
	if err != nil {
		return filters.ViewPreference{}, false, unavailable(err)
	}
	if raw == "" {
		return filters.ViewPreference{}, false, nil
	}

	prefs, dropped := decodeHash(map[string]string{view: raw})
	if dropped > 0 {
		metrics.AddPreferenceEntriesDropped(dropped)
	}
	pref, ok := prefs[view]
	return pref, ok, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, view string, pref filters.ViewPreference) error {
	if err := Validate(view, pref); err != nil {
		return err
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("failed to encode view preference: %w", err)
	}

	_, err = circuitbreaker.Do(ctx, s.breaker, func(ctx context.Context) (int64, error) {
		return s.client.HSet(ctx, key(userID), view, body).Result()
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, view string) error {
	_, err := circuitbreaker.Do(ctx, s.breaker, func(ctx context.Context) (int64, error) {
		return s.client.HDel(ctx, key(userID), view).Result()
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Validate applies the same rules as the read side, but reports the
// offending field instead of dropping the entry.
func Validate(view string, pref filters.ViewPreference) error {
	switch {
	case view == "":
		return pkgerrors.ErrValidation.WithMessage("view id is required")
	case !filters.IsPeriodValid(pref.Period):
		return pkgerrors.ErrValidation.WithMessage("invalid period").WithDetail("period", pref.Period)
	case !filters.IsTimeBucketValid(pref.TimeBucket):
		return pkgerrors.ErrValidation.WithMessage("invalid time bucket").WithDetail("timeBucket", pref.TimeBucket)
	}
	return nil
}

// decodeHash decodes the hash fields one by one and returns the valid
// preferences along with the number of entries dropped.
func decodeHash(raw map[string]string) (map[string]filters.ViewPreference, int) {
	prefs := filters.DecodePreferenceEntries(raw)
	return prefs, len(raw) - len(prefs)
}

func unavailable(err error) error {
	if pkgerrors.ToHTTPStatus(err) < 500 {
		return err
	}
	return pkgerrors.ErrServiceUnavailable.WithCause(err).WithMessage("view preferences are unavailable")
}

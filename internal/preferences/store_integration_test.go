//go:build integration

package preferences

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/config"
	"pulse/internal/filters"
	"pulse/internal/logger"
	"pulse/internal/testinfra"
	"pulse/pkg/circuitbreaker"
)

func TestRedisStore(t *testing.T) {
	client := testinfra.Redis(t)
	ctx := context.Background()
	store := NewRedisStore(client,
		circuitbreaker.NewWrapper(circuitbreaker.FromConfig("preferences", config.CircuitBreakerConfig{})),
		logger.NopLogger())

	week := filters.ViewPreference{Period: "4w", TimeBucket: "week"}
	require.NoError(t, store.Set(ctx, "u1", "p1", week))
	assert.Error(t, store.Set(ctx, "u1", "p2", filters.ViewPreference{Period: "nope", TimeBucket: "day"}))

	require.NoError(t, client.HSet(ctx, "viewprefs:u1", "legacy", `{"period":"30d","timeBucket":"day"}`).Err())

	all, err := store.All(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]filters.ViewPreference{"p1": week}, all)

	pref, ok, err := store.Get(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, week, pref)

	_, ok, err = store.Get(ctx, "u1", "legacy")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "u1", "p1"))
	all, err = store.All(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

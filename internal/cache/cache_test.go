package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_FetchesOnceThenServesFromRedis(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *entry) func() error {
		return func() error {
			calls++
			dest.Name = "bmi"
			return nil
		}
	}

	var first entry
	require.NoError(t, Aside(ctx, CalculatorKey(1), &first, time.Minute, fetch(&first)))
	var second entry
	require.NoError(t, Aside(ctx, CalculatorKey(1), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "bmi", second.Name)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("boom")

	var e entry
	err := Aside(context.Background(), UserKey(7), &e, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(UserKey(7)))
}

func TestAside_WithoutRedisAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	for i := 0; i < 2; i++ {
		var e entry
		require.NoError(t, Aside(context.Background(), UserKey(1), &e, time.Minute, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestInvalidateCalculator_DropsIDAndSlugKeys(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, CalculatorKey(3), entry{Name: "a"}, time.Minute))
	require.NoError(t, SetJSON(ctx, SlugKey("body-mass"), entry{Name: "a"}, time.Minute))

	InvalidateCalculator(ctx, 3, "body-mass")

	assert.False(t, mr.Exists(CalculatorKey(3)))
	assert.False(t, mr.Exists(SlugKey("body-mass")))
}

func TestInitRedis_EmptyAddressLeavesClientNil(t *testing.T) {
	InitRedis("")
	assert.Nil(t, GetClient())
}

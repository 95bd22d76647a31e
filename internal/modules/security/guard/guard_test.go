package guard

import (
	"context"
	"testing"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGuard(t *testing.T) (*BruteForceGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	g := New(cache.NewRedis(rdb), zap.NewNop(), 5, 15*time.Minute, 30*time.Minute)
	return g, mr
}

func TestLockoutOnThresholdAttempt(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		st := g.RecordFailure(ctx, "alice@example.com")
		require.False(t, st.Blocked, "attempt %d must not lock", i)
		require.Equal(t, i, st.Attempts)
	}

	st := g.RecordFailure(ctx, "alice@example.com")
	require.True(t, st.Blocked)
	require.Equal(t, 5, st.Attempts)
	require.InDelta(t, (30 * time.Minute).Seconds(), st.RetryAfter.Seconds(), 1)
}

func TestFailuresDuringLockoutDoNotExtendIt(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}
	first := g.Check(ctx, "alice@example.com")
	require.True(t, first.Blocked)

	time.Sleep(10 * time.Millisecond)
	st := g.RecordFailure(ctx, "alice@example.com")
	require.True(t, st.Blocked)
	require.Equal(t, 6, st.Attempts)
	require.LessOrEqual(t, st.RetryAfter, first.RetryAfter)
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	g, mr := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}
	mr.FastForward(16 * time.Minute)

	st := g.RecordFailure(ctx, "alice@example.com")
	require.False(t, st.Blocked)
	require.Equal(t, 1, st.Attempts)
}

func TestLockoutSurvivesWindowExpiry(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	base := time.Now()
	now := base
	g.WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}

	// Window (15m) has passed but the 30m lockout has not.
	now = base.Add(20 * time.Minute)
	st := g.Check(ctx, "alice@example.com")
	require.True(t, st.Blocked)

	now = base.Add(31 * time.Minute)
	st = g.Check(ctx, "alice@example.com")
	require.False(t, st.Blocked)
}

func TestRelockAfterServedLockoutInsideLongWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// Window longer than the lockout: the state entry outlives the lockout,
	// so continued failures after serving it must lock again.
	g := New(cache.NewRedis(rdb), zap.NewNop(), 3, time.Hour, time.Minute)
	ctx := context.Background()

	base := time.Now()
	now := base
	g.WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}
	require.True(t, g.Check(ctx, "alice@example.com").Blocked)

	now = base.Add(2 * time.Minute)
	require.False(t, g.Check(ctx, "alice@example.com").Blocked)

	st := g.RecordFailure(ctx, "alice@example.com")
	require.True(t, st.Blocked)
	require.InDelta(t, time.Minute.Seconds(), st.RetryAfter.Seconds(), 1)
}

func TestResetClearsState(t *testing.T) {
	g, mr := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}
	require.True(t, g.Check(ctx, "alice@example.com").Blocked)

	g.Reset(ctx, "alice@example.com")
	require.False(t, g.Check(ctx, "alice@example.com").Blocked)
	require.False(t, mr.Exists(keyPrefix+"alice@example.com"))
}

func TestIdentifiersAreIndependent(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}
	require.True(t, g.Check(ctx, "alice@example.com").Blocked)
	require.False(t, g.Check(ctx, "bob@example.com").Blocked)
	require.False(t, g.Check(ctx, "10.0.0.1").Blocked)
}

func TestGuardFailsOpenWithoutCache(t *testing.T) {
	g := New(cache.Disabled{}, zap.NewNop(), 5, 15*time.Minute, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		st := g.RecordFailure(ctx, "alice@example.com")
		require.False(t, st.Blocked)
	}
	require.False(t, g.Check(ctx, "alice@example.com").Blocked)
}

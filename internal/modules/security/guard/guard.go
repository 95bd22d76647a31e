package guard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"go.uber.org/zap"
)

const keyPrefix = "auth:bruteforce:"

// state is the single cache entry tracked per identifier. Keeping the
// counter and the lockout in one value means a cache eviction resets both
// at once instead of leaving them inconsistent.
type state struct {
	Attempts     int        `json:"attempts"`
	FirstAttempt time.Time  `json:"first_attempt"`
	LastAttempt  time.Time  `json:"last_attempt"`
	LockoutUntil *time.Time `json:"lockout_until,omitempty"`
}

// Status is what callers get back from a guard check.
type Status struct {
	Blocked    bool
	Attempts   int
	RetryAfter time.Duration
}

// BruteForceGuard counts failed authentication attempts per identifier
// (credential identity or source IP) inside a sliding window and locks the
// identifier out once the threshold is crossed. State lives only in the
// cache; when the cache is unreachable the guard fails open so an outage
// never locks everyone out of login.
type BruteForceGuard struct {
	cache     cache.Store
	logger    *zap.Logger
	threshold int
	window    time.Duration
	lockout   time.Duration
	now       func() time.Time
}

func New(store cache.Store, logger *zap.Logger, threshold int, window, lockout time.Duration) *BruteForceGuard {
	return &BruteForceGuard{
		cache:     store,
		logger:    logger,
		threshold: threshold,
		window:    window,
		lockout:   lockout,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (g *BruteForceGuard) WithClock(now func() time.Time) *BruteForceGuard {
	g.now = now
	return g
}

// Check reports whether the identifier is currently locked out.
func (g *BruteForceGuard) Check(ctx context.Context, identifier string) Status {
	st, ok := g.load(ctx, identifier)
	if !ok {
		return Status{}
	}
	return g.status(st)
}

// RecordFailure notes a failed attempt and returns the resulting status.
// The attempt that crosses the threshold starts the lockout clock.
func (g *BruteForceGuard) RecordFailure(ctx context.Context, identifier string) Status {
	now := g.now()
	st, ok := g.load(ctx, identifier)
	if !ok {
		st = nil
	}

	if st != nil && st.LockoutUntil != nil && !now.Before(*st.LockoutUntil) {
		// Lockout served. Drop the marker, or a configuration where the
		// window outlives the lockout could never lock this identifier again
		// while the entry stays alive.
		st.LockoutUntil = nil
	}
	if st == nil || (st.LockoutUntil == nil && now.Sub(st.FirstAttempt) > g.window) {
		st = &state{FirstAttempt: now}
	}
	st.Attempts++
	st.LastAttempt = now
	if st.LockoutUntil == nil && st.Attempts >= g.threshold {
		until := now.Add(g.lockout)
		st.LockoutUntil = &until
	}

	g.save(ctx, identifier, st)
	return g.status(st)
}

// Reset clears all tracked state for the identifier, called after a
// successful authentication.
func (g *BruteForceGuard) Reset(ctx context.Context, identifier string) {
	if err := g.cache.Del(ctx, keyPrefix+identifier); err != nil {
		g.logger.Warn("guard reset failed", zap.String("identifier", identifier), zap.Error(err))
	}
}

func (g *BruteForceGuard) status(st *state) Status {
	out := Status{Attempts: st.Attempts}
	if st.LockoutUntil != nil {
		if remaining := st.LockoutUntil.Sub(g.now()); remaining > 0 {
			out.Blocked = true
			out.RetryAfter = remaining
		}
	}
	return out
}

// load returns (nil, true) on a clean miss and (nil, false) when the cache
// is unreachable, which callers treat as "no state" so the guard degrades
// open.
func (g *BruteForceGuard) load(ctx context.Context, identifier string) (*state, bool) {
	raw, found, err := g.cache.Get(ctx, keyPrefix+identifier)
	if err != nil {
		g.logger.Warn("guard degraded, allowing attempt",
			zap.String("identifier", identifier), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, true
	}
	var st state
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		g.logger.Warn("guard state corrupt, resetting",
			zap.String("identifier", identifier), zap.Error(err))
		return nil, true
	}
	return &st, true
}

// save stores the entry with a TTL covering whichever lasts longer, the
// remaining window or the remaining lockout, so the key expires exactly
// when the state stops mattering.
func (g *BruteForceGuard) save(ctx context.Context, identifier string, st *state) {
	ttl := st.FirstAttempt.Add(g.window).Sub(g.now())
	if st.LockoutUntil != nil {
		if lockTTL := st.LockoutUntil.Sub(g.now()); lockTTL > ttl {
			ttl = lockTTL
		}
	}
	if ttl <= 0 {
		return
	}

	buf, err := json.Marshal(st)
	if err != nil {
		g.logger.Error("guard state marshal failed", zap.Error(err))
		return
	}
	if err := g.cache.Set(ctx, keyPrefix+identifier, string(buf), ttl); err != nil {
		g.logger.Warn("guard state write failed",
			zap.String("identifier", identifier), zap.Error(err))
	}
}

package gate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/guard"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/scanner"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"go.uber.org/zap"
)

// Verdict explains why a request was refused.
type Verdict string

const (
	VerdictAllowed           Verdict = "allowed"
	VerdictSecurityViolation Verdict = "security_violation"
	VerdictRateLimited       Verdict = "rate_limited"
)

const attackRecordTTL = 24 * time.Hour

// Decision is the gate's answer for one request.
type Decision struct {
	Allowed    bool
	Verdict    Verdict
	RetryAfter time.Duration
	Analysis   *scanner.Analysis
}

// Gate fronts the authentication endpoints. Every request passes the
// signature scanner; credential endpoints additionally consult the
// brute-force guard for the caller's identity and source IP.
type Gate struct {
	scanner       *scanner.Scanner
	guard         *guard.BruteForceGuard
	cache         cache.Store
	logger        *zap.Logger
	blockHighRisk bool
}

func New(sc *scanner.Scanner, g *guard.BruteForceGuard, store cache.Store, logger *zap.Logger, blockHighRisk bool) *Gate {
	return &Gate{
		scanner:       sc,
		guard:         g,
		cache:         store,
		logger:        logger,
		blockHighRisk: blockHighRisk,
	}
}

// Admit runs the full scan and, when identifiers are given, the lockout
// check. The scan always runs first so an attacker who is also locked out
// is reported as an attack, not a rate limit.
func (g *Gate) Admit(ctx context.Context, rc scanner.RequestComponents, ip string, identifiers ...string) Decision {
	analysis := g.scanner.Scan(rc)

	if analysis.IsAttack {
		g.recordAttack(ctx, ip, analysis)
		if g.shouldBlock(analysis.RiskLevel) {
			g.logger.Warn("request blocked by security gate",
				zap.String("ip", ip),
				zap.String("risk_level", string(analysis.RiskLevel)),
				zap.Any("categories", analysis.Categories))
			return Decision{Verdict: VerdictSecurityViolation, Analysis: analysis}
		}
		g.logger.Warn("attack signatures detected, request allowed",
			zap.String("ip", ip),
			zap.String("risk_level", string(analysis.RiskLevel)),
			zap.Any("categories", analysis.Categories))
	}

	for _, id := range identifiers {
		if id == "" {
			continue
		}
		if st := g.guard.Check(ctx, id); st.Blocked {
			g.logger.Warn("request blocked by lockout",
				zap.String("ip", ip),
				zap.Duration("retry_after", st.RetryAfter))
			return Decision{
				Verdict:    VerdictRateLimited,
				RetryAfter: st.RetryAfter,
				Analysis:   analysis,
			}
		}
	}

	return Decision{Allowed: true, Verdict: VerdictAllowed, Analysis: analysis}
}

func (g *Gate) shouldBlock(level scanner.RiskLevel) bool {
	switch level {
	case scanner.RiskCritical:
		return true
	case scanner.RiskHigh:
		return g.blockHighRisk
	default:
		return false
	}
}

// recordAttack keeps the most recent analysis per source IP for a day so
// operators can inspect what a noisy address has been sending. Best effort,
// a cache outage never affects the verdict.
func (g *Gate) recordAttack(ctx context.Context, ip string, analysis *scanner.Analysis) {
	if ip == "" {
		return
	}
	buf, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, "auth:attack:"+ip, string(buf), attackRecordTTL); err != nil {
		g.logger.Debug("attack record write failed", zap.String("ip", ip), zap.Error(err))
	}
}

// RecentAttack returns the last recorded analysis for an IP, if any.
func (g *Gate) RecentAttack(ctx context.Context, ip string) (*scanner.Analysis, error) {
	raw, found, err := g.cache.Get(ctx, "auth:attack:"+ip)
	if err != nil || !found {
		return nil, err
	}
	var analysis scanner.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

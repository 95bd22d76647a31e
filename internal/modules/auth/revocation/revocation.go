package revocation

import (
	"context"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Revocation reasons recorded with each entry.
const (
	ReasonLogout            = "logout"
	ReasonRefreshSuperseded = "refresh-superseded"
	ReasonForced            = "forced"
	ReasonAdminAction       = "admin-action"
	ReasonResetConsumed     = "reset-consumed"
)

const keyPrefix = "auth:revoked:"

// Registry tracks revoked token fingerprints. The cache entry, with TTL
// equal to the remaining token lifetime, is authoritative for lookups; a
// durable audit row is written best-effort alongside.
type Registry struct {
	cache  cache.Store
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Registry. db may be nil when no durable audit is wanted
// (tests).
func New(store cache.Store, db *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{cache: store, db: db, logger: logger, now: time.Now}
}

// WithClock overrides the time source, used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Revoke marks a token fingerprint invalid until expiresAt. Revoking an
// already-revoked or already-expired token is a no-op success, which makes
// the operation safe to retry after an HTTP timeout.
func (r *Registry) Revoke(ctx context.Context, fingerprint, userID, reason string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// Token could no longer be presented anyway.
		return nil
	}

	if err := r.cache.Set(ctx, keyPrefix+fingerprint, reason, ttl); err != nil {
		// Refresh-token reads fail closed when the cache is down, so a lost
		// write cannot resurrect a refresh chain. Keep the audit trail.
		r.logger.Warn("revocation cache write failed",
			zap.String("user_id", userID),
			zap.String("reason", reason),
			zap.Error(err))
	}

	if r.db != nil {
		entry := models.RevokedToken{
			TokenHash: fingerprint,
			UserID:    userID,
			Reason:    reason,
			ExpiresAt: expiresAt,
		}
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&entry).Error; err != nil {
			r.logger.Warn("revocation audit write failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	return nil
}

// IsRevoked reports whether a fingerprint has been revoked. When the cache
// backend is unreachable the answer depends on the token kind: refresh and
// password-reset tokens are treated as revoked (forcing re-authentication)
// while short-lived access tokens are treated as valid so availability wins.
func (r *Registry) IsRevoked(ctx context.Context, fingerprint string, typ token.Type) bool {
	_, found, err := r.cache.Get(ctx, keyPrefix+fingerprint)
	if err != nil {
		failClosed := typ != token.TypeAccess
		r.logger.Warn("revocation lookup degraded",
			zap.String("token_type", string(typ)),
			zap.Bool("fail_closed", failClosed),
			zap.Error(err))
		return failClosed
	}
	return found
}

// PruneAudit deletes audit rows for tokens that could no longer be alive.
// Cache TTL expiry already cleaned the authoritative entries.
func (r *Registry) PruneAudit(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", r.now()).
		Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}

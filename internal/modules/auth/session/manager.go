package session

import (
	"context"
	"fmt"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/revocation"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserDirectory is the slice of the user module the session manager needs:
// resolving an account and snapshotting its authorization profile into
// freshly minted tokens.
type UserDirectory interface {
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
	AccessProfile(ctx context.Context, userID string) (roles []string, permissions []string, err error)
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
}

// Manager owns the session lifecycle: creation on login, access-token
// validation, single-use refresh rotation, and revocation.
type Manager struct {
	store      Store
	users      UserDirectory
	codec      *token.Codec
	registry   *revocation.Registry
	logger     *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewManager(store Store, users UserDirectory, codec *token.Codec, registry *revocation.Registry, logger *zap.Logger, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		store:      store,
		users:      users,
		codec:      codec,
		registry:   registry,
		logger:     logger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create mints an access/refresh pair for an already-authenticated user and
// persists the session. Roles and permissions are snapshotted into the
// access token and stay fixed until the next refresh.
func (m *Manager) Create(ctx context.Context, user *models.User, ip, ua, device string) (*TokenPair, error) {
	roles, perms, err := m.users.AccessProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load access profile: %w", err)
	}

	access, refresh, err := m.issuePair(user.ID, user.Email, roles, perms)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		UserID:           user.ID,
		AccessTokenHash:  token.Fingerprint(access),
		RefreshTokenHash: token.Fingerprint(refresh),
		IP:               ip,
		UA:               ua,
		DeviceInfo:       device,
		ExpiresAt:        m.now().Add(m.refreshTTL),
		AccessExpiresAt:  m.now().Add(m.accessTTL),
		IsActive:         true,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    m.now().Add(m.accessTTL),
		SessionID:    s.ID,
	}, nil
}

// ValidateAccess checks an access token end to end: signature and expiry,
// revocation, and a live session row. Every failure mode collapses into
// autherr.ErrAuthentication so callers cannot distinguish them.
func (m *Manager) ValidateAccess(ctx context.Context, raw string) (*token.Claims, *models.Session, error) {
	claims, err := m.codec.Verify(raw, token.TypeAccess)
	if err != nil {
		return nil, nil, autherr.ErrAuthentication
	}

	fp := token.Fingerprint(raw)
	if m.registry.IsRevoked(ctx, fp, token.TypeAccess) {
		return nil, nil, autherr.ErrAuthentication
	}

	s, err := m.store.FindByAccessHash(ctx, fp)
	if err != nil {
		if !IsNotFound(err) {
			m.logger.Error("session lookup failed", zap.Error(err))
		}
		return nil, nil, autherr.ErrAuthentication
	}
	if !s.IsActive || m.now().After(s.ExpiresAt) {
		return nil, nil, autherr.ErrAuthentication
	}
	return claims, s, nil
}

// Refresh rotates a refresh token. The presented token is single use:
// rotation happens through a compare-and-swap on the stored fingerprint, so
// when two requests race exactly one wins and the other fails
// authentication. The superseded pair is revoked for its remaining
// lifetime.
func (m *Manager) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	claims, err := m.codec.Verify(rawRefresh, token.TypeRefresh)
	if err != nil {
		return nil, autherr.ErrAuthentication
	}

	oldRefreshFP := token.Fingerprint(rawRefresh)
	if m.registry.IsRevoked(ctx, oldRefreshFP, token.TypeRefresh) {
		return nil, autherr.ErrAuthentication
	}

	s, err := m.store.FindByRefreshHash(ctx, oldRefreshFP)
	if err != nil {
		if !IsNotFound(err) {
			m.logger.Error("session lookup failed", zap.Error(err))
		}
		return nil, autherr.ErrAuthentication
	}
	if !s.IsActive || m.now().After(s.ExpiresAt) {
		return nil, autherr.ErrAuthentication
	}

	userID := claims.Subject
	user, err := m.users.FindActiveByID(ctx, userID)
	if err != nil {
		return nil, autherr.ErrAuthentication
	}
	roles, perms, err := m.users.AccessProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load access profile: %w", err)
	}

	access, refresh, err := m.issuePair(userID, user.Email, roles, perms)
	if err != nil {
		return nil, err
	}

	won, err := m.store.RotateTokens(ctx, s.ID, oldRefreshFP,
		token.Fingerprint(access), token.Fingerprint(refresh),
		m.now().Add(m.refreshTTL), m.now().Add(m.accessTTL))
	if err != nil {
		return nil, fmt.Errorf("rotate session tokens: %w", err)
	}
	if !won {
		// A concurrent refresh already consumed this token.
		m.logger.Warn("refresh race lost", zap.String("session_id", s.ID), zap.String("user_id", userID))
		return nil, autherr.ErrAuthentication
	}

	// The old pair dies with its own expiries (read before the rotation),
	// never longer than either token could actually live.
	_ = m.registry.Revoke(ctx, s.AccessTokenHash, userID, revocation.ReasonRefreshSuperseded, s.AccessExpiresAt)
	_ = m.registry.Revoke(ctx, oldRefreshFP, userID, revocation.ReasonRefreshSuperseded, s.ExpiresAt)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    m.now().Add(m.accessTTL),
		SessionID:    s.ID,
	}, nil
}

// RevokeByAccess ends the session carrying the given access token. Unknown
// or already-revoked tokens are a success, so logout can be retried freely.
func (m *Manager) RevokeByAccess(ctx context.Context, rawAccess, reason string) error {
	fp := token.Fingerprint(rawAccess)
	s, err := m.store.FindByAccessHash(ctx, fp)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("session lookup: %w", err)
	}
	return m.revokeSession(ctx, s, reason)
}

// Revoke ends a session by id, enforcing ownership. Revoking an inactive
// session is a success.
func (m *Manager) Revoke(ctx context.Context, sessionID, userID, reason string) error {
	s, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		if IsNotFound(err) {
			return autherr.ErrAuthentication
		}
		return fmt.Errorf("session lookup: %w", err)
	}
	if s.UserID != userID {
		return autherr.ErrAuthentication
	}
	return m.revokeSession(ctx, s, reason)
}

// RevokeAllForUser ends every active session for a user, optionally keeping
// one alive. Used for logout-everywhere and forced credential resets.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, exceptSessionID, reason string) (int, error) {
	sessions, err := m.store.DeactivateAllForUser(ctx, userID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions: %w", err)
	}
	for _, s := range sessions {
		m.revokeFingerprints(ctx, &s, reason)
	}
	return len(sessions), nil
}

// ListActive returns the user's live sessions, newest activity first.
func (m *Manager) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	return m.store.ListActive(ctx, userID)
}

// Stats reports aggregate counts across all users.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	return m.store.Stats(ctx)
}

// CleanupExpired drops session rows whose expiry passed more than grace
// ago. Rows inside the grace window are kept for audit queries.
func (m *Manager) CleanupExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return m.store.DeleteExpiredBefore(ctx, m.now().Add(-grace))
}

func (m *Manager) revokeSession(ctx context.Context, s *models.Session, reason string) error {
	if _, err := m.store.Deactivate(ctx, s.ID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	m.revokeFingerprints(ctx, s, reason)
	return nil
}

func (m *Manager) revokeFingerprints(ctx context.Context, s *models.Session, reason string) {
	if err := m.registry.Revoke(ctx, s.AccessTokenHash, s.UserID, reason, s.AccessExpiresAt); err != nil {
		m.logger.Warn("access revocation failed", zap.String("session_id", s.ID), zap.Error(err))
	}
	if err := m.registry.Revoke(ctx, s.RefreshTokenHash, s.UserID, reason, s.ExpiresAt); err != nil {
		m.logger.Warn("refresh revocation failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (m *Manager) issuePair(userID, email string, roles, perms []string) (access, refresh string, err error) {
	base := token.Claims{
		Email:       email,
		Roles:       roles,
		Permissions: perms,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject: userID,
		},
	}
	access, err = m.codec.Issue(base, token.TypeAccess, m.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err = m.codec.Issue(base, token.TypeRefresh, m.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, nil
}

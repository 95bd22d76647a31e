package auth

import (
	"context"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/revocation"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/session"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/guard"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/user"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/mail"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Audit outcomes written to the login trail.
const (
	OutcomeSuccess       = "success"
	OutcomeFailure       = "failure"
	OutcomeLockedOut     = "locked_out"
	OutcomeAttackBlocked = "attack_blocked"
)

// Service drives the credential flows: login, refresh, logout and the
// password reset cycle. It wires the brute-force guard around password
// checks and leaves session mechanics to the lifecycle manager.
type Service struct {
	db       *gorm.DB
	users    *user.Service
	sessions *session.Manager
	guard    *guard.BruteForceGuard
	codec    *token.Codec
	registry *revocation.Registry
	mailer   *mail.Sender
	logger   *zap.Logger

	resetTTL    time.Duration
	frontendURL string
}

func NewService(db *gorm.DB, users *user.Service, sessions *session.Manager, g *guard.BruteForceGuard,
	codec *token.Codec, registry *revocation.Registry, mailer *mail.Sender,
	resetTTL time.Duration, frontendURL string, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		users:       users,
		sessions:    sessions,
		guard:       g,
		codec:       codec,
		registry:    registry,
		mailer:      mailer,
		logger:      logger,
		resetTTL:    resetTTL,
		frontendURL: frontendURL,
	}
}

// Login authenticates a credential pair and opens a session. Unknown
// accounts and wrong passwords are indistinguishable to the caller, and
// both count against the guard for the email and the source IP.
func (s *Service) Login(ctx context.Context, email, password, ip, ua, device string) (*session.TokenPair, *models.User, error) {
	for _, id := range []string{email, ip} {
		if st := s.guard.Check(ctx, id); st.Blocked {
			s.Audit(ctx, "", email, ip, ua, OutcomeLockedOut, "")
			return nil, nil, &autherr.LockedOutError{RetryAfter: st.RetryAfter}
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == autherr.ErrAuthentication {
			return nil, nil, s.failLogin(ctx, "", email, ip, ua, "unknown or inactive account")
		}
		return nil, nil, err
	}

	if !s.users.VerifyPassword(u, password) {
		return nil, nil, s.failLogin(ctx, u.ID, email, ip, ua, "password mismatch")
	}

	pair, err := s.sessions.Create(ctx, u, ip, ua, device)
	if err != nil {
		return nil, nil, err
	}

	s.guard.Reset(ctx, email)
	s.guard.Reset(ctx, ip)
	if err := s.users.RecordLogin(ctx, u.ID, ip); err != nil {
		s.logger.Warn("last-login update failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.Audit(ctx, u.ID, email, ip, ua, OutcomeSuccess, "")
	return pair, u, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*session.TokenPair, error) {
	return s.sessions.Refresh(ctx, rawRefresh)
}

// Logout ends the session behind an access token. Safe to repeat.
func (s *Service) Logout(ctx context.Context, rawAccess string) error {
	return s.sessions.RevokeByAccess(ctx, rawAccess, revocation.ReasonLogout)
}

// LogoutAll ends every other session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID, keepSessionID string) (int, error) {
	return s.sessions.RevokeAllForUser(ctx, userID, keepSessionID, revocation.ReasonForced)
}

// Audit appends a row to the login trail. Best effort: the flows never
// fail because the audit table is unavailable.
func (s *Service) Audit(ctx context.Context, userID, identifier, ip, ua, outcome, detail string) {
	entry := models.LoginAudit{
		UserID:     userID,
		Identifier: identifier,
		IP:         ip,
		UA:         ua,
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Warn("login audit write failed",
			zap.String("identifier", identifier),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}

func (s *Service) failLogin(ctx context.Context, userID, email, ip, ua, detail string) error {
	s.guard.RecordFailure(ctx, email)
	s.guard.RecordFailure(ctx, ip)
	s.Audit(ctx, userID, email, ip, ua, OutcomeFailure, detail)
	return autherr.ErrAuthentication
}

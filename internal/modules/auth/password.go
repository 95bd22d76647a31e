package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/revocation"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/mail"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"go.uber.org/zap"
)

// Password-cycle audit outcomes.
const (
	OutcomeResetRequested = "reset_requested"
	OutcomeResetCompleted = "reset_completed"
	OutcomePasswordChange = "password_changed"
)

// ForgotPassword starts the reset cycle. The response is identical whether
// the account exists or not, so the endpoint cannot be used to enumerate
// registered emails.
func (s *Service) ForgotPassword(ctx context.Context, email, ip, ua string) error {
	if st := s.guard.Check(ctx, ip); st.Blocked {
		return &autherr.LockedOutError{RetryAfter: st.RetryAfter}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrAuthentication) {
			// Unknown account. Still counts against the source IP so the
			// endpoint cannot be hammered to probe for accounts.
			s.guard.RecordFailure(ctx, ip)
			s.Audit(ctx, "", email, ip, ua, OutcomeResetRequested, "unknown account")
			return nil
		}
		return err
	}

	raw, err := s.codec.Issue(token.Claims{
		Email:            u.Email,
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: u.ID},
	}, token.TypePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}

	if s.mailer != nil && s.mailer.Enabled() {
		if err := s.mailer.SendPasswordReset(u.Email, mail.PasswordResetData{
			ResetURL: s.resetURL(raw),
			ValidFor: humanTTL(s.resetTTL),
		}); err != nil {
			s.logger.Error("reset mail send failed",
				zap.String("user_id", u.ID),
				zap.Error(err))
			return err
		}
	} else {
		s.logger.Warn("mail disabled, reset token issued but not delivered",
			zap.String("user_id", u.ID))
	}

	s.Audit(ctx, u.ID, email, ip, ua, OutcomeResetRequested, "")
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// is single use: it is revoked for its remaining lifetime before the
// password is rewritten, and every existing session of the account is
// destroyed afterwards.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword, ip, ua string) error {
	claims, err := s.codec.Verify(rawToken, token.TypePasswordReset)
	if err != nil {
		return autherr.ErrAuthentication
	}

	fp := token.Fingerprint(rawToken)
	if s.registry.IsRevoked(ctx, fp, token.TypePasswordReset) {
		return autherr.ErrAuthentication
	}

	u, err := s.users.FindActiveByID(ctx, claims.Subject)
	if err != nil {
		return autherr.ErrAuthentication
	}

	// Burn the token before touching the password so a concurrent second
	// submit of the same link cannot race its way through.
	if err := s.registry.Revoke(ctx, fp, u.ID, revocation.ReasonResetConsumed, claims.ExpiresAt.Time); err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		return err
	}

	if n, err := s.sessions.RevokeAllForUser(ctx, u.ID, "", revocation.ReasonForced); err != nil {
		s.logger.Warn("session purge after reset failed",
			zap.String("user_id", u.ID), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("sessions revoked after password reset",
			zap.String("user_id", u.ID), zap.Int("count", n))
	}

	s.guard.Reset(ctx, u.Email)
	s.Audit(ctx, u.ID, u.Email, ip, ua, OutcomeResetCompleted, "")
	return nil
}

// ChangePassword rotates the password of an authenticated user. The current
// password must be presented again; all other sessions are destroyed so a
// stolen refresh token dies with the old credential.
func (s *Service) ChangePassword(ctx context.Context, userID, sessionID, current, next, ip, ua string) error {
	u, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		return autherr.ErrAuthentication
	}
	if !s.users.VerifyPassword(u, current) {
		s.guard.RecordFailure(ctx, u.Email)
		s.Audit(ctx, u.ID, u.Email, ip, ua, OutcomeFailure, "password change: current mismatch")
		return autherr.ErrAuthentication
	}

	if err := s.users.UpdatePassword(ctx, u.ID, next); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAllForUser(ctx, u.ID, sessionID, revocation.ReasonForced); err != nil {
		s.logger.Warn("session purge after password change failed",
			zap.String("user_id", u.ID), zap.Error(err))
	}

	s.Audit(ctx, u.ID, u.Email, ip, ua, OutcomePasswordChange, "")
	return nil
}

func (s *Service) resetURL(rawToken string) string {
	base := strings.TrimRight(s.frontendURL, "/")
	if base == "" {
		base = "http://localhost:3000"
	}
	return base + "/reset-password?token=" + url.QueryEscape(rawToken)
}

func humanTTL(d time.Duration) string {
	if d >= time.Hour {
		h := int(d.Hours())
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d.Minutes())
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

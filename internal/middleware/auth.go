package middleware

import (
	"context"
	"strings"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
	ContextKeyClaims = "token_claims"
	ContextKeyToken  = "raw_token"
)

// AccessValidator is the slice of the session manager the middleware
// needs.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*token.Claims, *models.Session, error)
}

// Auth returns a middleware that enforces a valid access token backed by a
// live session. Failures share one response body.
func Auth(v AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			response.Unauthorized(c)
			return
		}
		claims, s, err := v.ValidateAccess(c.Request.Context(), raw)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.Subject)
		c.Set(ContextKeySID, s.ID)
		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, raw)
		c.Next()
	}
}

// RequirePermission gates a route on a permission code snapshotted into the
// access token.
func RequirePermission(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Unauthorized(c)
			return
		}
		for _, p := range claims.Permissions {
			if p == code {
				c.Next()
				return
			}
		}
		response.Forbidden(c)
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	v, _ := c.Get(ContextKeySID)
	id, _ := v.(string)
	return id
}

// CurrentClaims extracts the verified token claims from context.
func CurrentClaims(c *gin.Context) *token.Claims {
	v, _ := c.Get(ContextKeyClaims)
	claims, _ := v.(*token.Claims)
	return claims
}

// CurrentToken extracts the raw presented access token from context.
func CurrentToken(c *gin.Context) string {
	v, _ := c.Get(ContextKeyToken)
	raw, _ := v.(string)
	return raw
}

// IsAuthenticated returns true if the request carries a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	return NormalizeToken(c.GetHeader("Authorization"))
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(t), "bearer ") {
		return strings.TrimSpace(t[7:])
	}
	return t
}

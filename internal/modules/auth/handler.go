package auth

import (
	"errors"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/middleware"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/session"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type LoginDTO struct {
	Email      string `json:"email"    binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordDTO struct {
	Token       string `json:"token"        binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password"     binding:"required,min=8"`
}

type tokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
}

type loginResponse struct {
	tokenPairResponse
	User loginUser `json:"user"`
}

type loginUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the credential endpoints. gateMW fronts the
// unauthenticated ones; authMW protects the rest.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, gateMW, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/login", gateMW, h.login)
	a.POST("/refresh", gateMW, h.refresh)
	a.POST("/forgot-password", gateMW, h.forgotPassword)
	a.POST("/reset-password", gateMW, h.resetPassword)
	a.POST("/change-password", authMW, h.changePassword)
	a.POST("/logout", authMW, h.logout)
	a.POST("/logout-all", authMW, h.logoutAll)
	a.GET("/validate", authMW, h.validate)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}

	pair, u, err := h.svc.Login(c.Request.Context(),
		dto.Email, dto.Password, c.ClientIP(), c.Request.UserAgent(), dto.DeviceInfo)
	if err != nil {
		h.refuse(c, err)
		return
	}

	response.OK(c, loginResponse{
		tokenPairResponse: toPairResponse(pair),
		User:              loginUser{ID: u.ID, Email: u.Email, Username: u.Username},
	})
}

func (h *Handler) refresh(c *gin.Context) {
	var dto RefreshDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), dto.RefreshToken)
	if err != nil {
		h.refuse(c, err)
		return
	}
	response.OK(c, toPairResponse(pair))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"logged_out": true})
}

func (h *Handler) logoutAll(c *gin.Context) {
	count, err := h.svc.LogoutAll(c.Request.Context(),
		middleware.CurrentUserID(c), middleware.CurrentSessionID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"logged_out": true, "revoked": count})
}

// forgotPassword always reports success for well-formed requests so the
// endpoint cannot confirm whether an email is registered.
func (h *Handler) forgotPassword(c *gin.Context) {
	var dto ForgotPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "a valid email is required")
		return
	}

	err := h.svc.ForgotPassword(c.Request.Context(), dto.Email, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		var locked *autherr.LockedOutError
		if errors.As(err, &locked) {
			response.TooManyRequests(c, locked.RetryAfter)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "if the account exists, a reset email has been sent"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "token and a new password of at least 8 characters are required")
		return
	}

	err := h.svc.ResetPassword(c.Request.Context(),
		dto.Token, dto.NewPassword, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.refuse(c, err)
		return
	}
	response.OK(c, gin.H{"message": "password updated, please sign in again"})
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "current password and a new password of at least 8 characters are required")
		return
	}

	err := h.svc.ChangePassword(c.Request.Context(),
		middleware.CurrentUserID(c), middleware.CurrentSessionID(c),
		dto.CurrentPassword, dto.NewPassword, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.refuse(c, err)
		return
	}
	response.OK(c, gin.H{"message": "password updated"})
}

// validate lets downstream services confirm an access token and read its
// claim snapshot without sharing the signing secret.
func (h *Handler) validate(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	response.OK(c, gin.H{
		"valid":       true,
		"user_id":     claims.Subject,
		"email":       claims.Email,
		"roles":       claims.Roles,
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt.Time,
	})
}

// refuse maps service failures onto the wire. Authentication failures all
// share one message so callers cannot probe which accounts exist.
func (h *Handler) refuse(c *gin.Context, err error) {
	var locked *autherr.LockedOutError
	switch {
	case errors.As(err, &locked):
		response.TooManyRequests(c, locked.RetryAfter)
	case errors.Is(err, autherr.ErrAuthentication):
		response.Unauthorized(c)
	default:
		response.InternalError(c, err)
	}
}

func toPairResponse(p *session.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    p.ExpiresAt,
		SessionID:    p.SessionID,
	}
}

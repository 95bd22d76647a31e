package user

import (
	"context"
	"errors"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/middleware"
	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/permission"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	Status        string     `json:"status"`
	Roles         []string   `json:"roles"`
	Permissions   []string   `json:"permissions"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip,omitempty"`
}

// Service owns account lookups for the authentication flows. Only active
// accounts ever come back from the Find methods; suspended or locked users
// fail the same way unknown ones do.
type Service struct {
	db    *gorm.DB
	perms *permission.Service
}

func NewService(db *gorm.DB, perms *permission.Service) *Service {
	return &Service{db: db, perms: perms}
}

// FindByEmail resolves an active account by its login identifier.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, models.UserStatusActive).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrAuthentication
		}
		return nil, err
	}
	return &u, nil
}

// FindActiveByID resolves an active account by id.
func (s *Service) FindActiveByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.UserStatusActive).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrAuthentication
		}
		return nil, err
	}
	return &u, nil
}

// AccessProfile delegates to the permission service, satisfying the
// directory contract the session manager expects.
func (s *Service) AccessProfile(ctx context.Context, userID string) ([]string, []string, error) {
	return s.perms.AccessProfile(ctx, userID)
}

// VerifyPassword checks a plaintext candidate against the stored bcrypt
// hash.
func (s *Service) VerifyPassword(u *models.User, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// UpdatePassword rehashes and stores a new password for the account.
func (s *Service) UpdatePassword(ctx context.Context, userID, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password", string(hash))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return autherr.ErrAuthentication
	}
	return nil
}

// RecordLogin stamps the last successful login onto the account.
func (s *Service) RecordLogin(ctx context.Context, userID, ip string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_time": &now,
			"last_login_ip":   ip,
		}).Error
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	u := rg.Group("/users", authMW)
	u.GET("/me", h.me)
}

// me returns the caller's account with the role and permission snapshot
// carried by the presented token.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	u, err := h.svc.FindActiveByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, autherr.ErrAuthentication) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}

	claims := middleware.CurrentClaims(c)
	response.OK(c, userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Status:        u.Status,
		Roles:         claims.Roles,
		Permissions:   claims.Permissions,
		LastLoginTime: u.LastLoginTime,
		LastLoginIP:   u.LastLoginIP,
	})
}

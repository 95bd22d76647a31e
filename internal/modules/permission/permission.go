package permission

import (
	"context"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"gorm.io/gorm"
)

// Service resolves the role and permission codes attached to a user. The
// result is read at token-issue time and frozen into the claims, so a grant
// change only takes effect on the next login or refresh.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// RolesFor returns the role codes assigned to a user.
func (s *Service) RolesFor(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.code").
		Pluck("roles.code", &codes).Error
	return codes, err
}

// PermissionsFor returns the distinct permission codes a user holds through
// any of their roles.
func (s *Service) PermissionsFor(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&models.Permission{}).
		Distinct("permissions.code").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("permissions.code").
		Pluck("permissions.code", &codes).Error
	return codes, err
}

// AccessProfile fetches both in one call for token minting.
func (s *Service) AccessProfile(ctx context.Context, userID string) (roles []string, permissions []string, err error) {
	roles, err = s.RolesFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	permissions, err = s.PermissionsFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return roles, permissions, nil
}

package models

import "time"

// User account statuses. Account provisioning happens elsewhere; this
// service reads the status to gate session issuance and only writes the
// password hash and last-login columns.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// User represents an account known to the auth service.
type User struct {
	Base
	Email         string     `json:"email"           gorm:"uniqueIndex;not null"`
	Username      string     `json:"username"        gorm:"uniqueIndex"`
	Password      string     `json:"-"               gorm:"not null"`
	Status        string     `json:"status"          gorm:"index;not null;default:active"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
	Roles         []Role     `json:"roles,omitempty" gorm:"many2many:user_roles"`
}

func (User) TableName() string { return "users" }

// Role is a named bundle of permissions assignable to users.
type Role struct {
	Base
	Code        string       `json:"code" gorm:"uniqueIndex;not null"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions"`
}

func (Role) TableName() string { return "roles" }

// Permission is a single grant code embedded into access-token claims at
// issuance time.
type Permission struct {
	Base
	Code string `json:"code" gorm:"uniqueIndex;not null"`
	Name string `json:"name"`
}

func (Permission) TableName() string { return "permissions" }

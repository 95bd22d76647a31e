package models

import "time"

// Session is the durable record of one logical login. Token columns hold
// SHA-256 fingerprints, never raw token material. At most one active row
// maps to a live access-token fingerprint; once IsActive flips to false it
// never flips back.
type Session struct {
	Base
	UserID           string    `json:"user_id"       gorm:"index;not null"`
	AccessTokenHash  string    `json:"-"             gorm:"uniqueIndex;size:64;not null"`
	RefreshTokenHash string    `json:"-"             gorm:"index;size:64;not null"`
	IP               string    `json:"ip"`
	UA               string    `json:"ua"            gorm:"type:text"`
	DeviceInfo       string    `json:"device_info"   gorm:"type:text"`
	ExpiresAt        time.Time `json:"expires_at"    gorm:"index;not null"`
	AccessExpiresAt  time.Time `json:"-"             gorm:"not null"`
	IsActive         bool      `json:"is_active"     gorm:"index;not null;default:true"`
}

func (Session) TableName() string { return "sessions" }

// RevokedToken is the durable audit copy of a revocation entry. The cache
// entry is authoritative for lookups; these rows exist for audit and are
// pruned once the underlying token could no longer be alive.
type RevokedToken struct {
	Base
	TokenHash string    `json:"-"          gorm:"uniqueIndex;size:64;not null"`
	UserID    string    `json:"user_id"    gorm:"index;not null"`
	Reason    string    `json:"reason"     gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

func (RevokedToken) TableName() string { return "revoked_tokens" }

// LoginAudit records authentication outcomes and security rejections for
// the admin monitoring surface.
type LoginAudit struct {
	Base
	UserID     string `json:"user_id"    gorm:"index"`
	Identifier string `json:"identifier" gorm:"index"`
	IP         string `json:"ip"`
	UA         string `json:"ua"         gorm:"type:text"`
	Outcome    string `json:"outcome"    gorm:"index;not null"` // success | failure | locked_out | attack_blocked
	Detail     string `json:"detail"     gorm:"type:text"`
}

func (LoginAudit) TableName() string { return "login_audits" }

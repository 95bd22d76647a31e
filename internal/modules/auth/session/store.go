package session

import (
	"context"
	"errors"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"gorm.io/gorm"
)

// Stats summarizes the live session population.
type Stats struct {
	ActiveSessions int64 `json:"active_sessions"`
	ActiveUsers    int64 `json:"active_users"`
}

// Store persists session rows. All token material is stored as SHA-256
// fingerprints, never raw.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByAccessHash(ctx context.Context, hash string) (*models.Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error)
	// RotateTokens swaps the token fingerprints of a session only if the
	// stored refresh fingerprint still matches oldRefreshHash and the row is
	// active. Returns false when another rotation won the race.
	RotateTokens(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt, accessExpiresAt time.Time) (bool, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	DeactivateAllForUser(ctx context.Context, userID, exceptID string) ([]models.Session, error)
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

type gormStore struct{ db *gorm.DB }

// NewStore returns a Store backed by gorm.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (g *gormStore) Create(ctx context.Context, s *models.Session) error {
	return g.db.WithContext(ctx).Create(s).Error
}

func (g *gormStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *gormStore) FindByAccessHash(ctx context.Context, hash string) (*models.Session, error) {
	var s models.Session
	if err := g.db.WithContext(ctx).Where("access_token_hash = ?", hash).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *gormStore) FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	var s models.Session
	if err := g.db.WithContext(ctx).Where("refresh_token_hash = ?", hash).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *gormStore) RotateTokens(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt, accessExpiresAt time.Time) (bool, error) {
	res := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND refresh_token_hash = ? AND is_active = ?", id, oldRefreshHash, true).
		Updates(map[string]interface{}{
			"access_token_hash":  newAccessHash,
			"refresh_token_hash": newRefreshHash,
			"expires_at":         expiresAt,
			"access_expires_at":  accessExpiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *gormStore) Deactivate(ctx context.Context, id string) (bool, error) {
	res := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *gormStore) DeactivateAllForUser(ctx context.Context, userID, exceptID string) ([]models.Session, error) {
	var sessions []models.Session
	query := g.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	err := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error
	return sessions, err
}

func (g *gormStore) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("updated_at DESC, created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (g *gormStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	// Unscoped, or the embedded DeletedAt turns this into a soft delete and
	// the rows this job exists to reclaim stay in the table forever.
	res := g.db.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (is_active = ? AND updated_at < ?)", cutoff, false, cutoff).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (g *gormStore) Stats(ctx context.Context) (*Stats, error) {
	now := time.Now()
	var stats Stats
	err := g.db.WithContext(ctx).Model(&models.Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&stats.ActiveSessions).Error
	if err != nil {
		return nil, err
	}
	err = g.db.WithContext(ctx).Model(&models.Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Distinct("user_id").
		Count(&stats.ActiveUsers).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// IsNotFound reports whether err is the store's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
)

// Repository reads customer profiles owned by the identity service.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a profile reader.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindPhone returns the profile phone for the user, or "" when the user has no
// profile or no phone on file.
func (r *Repository) FindPhone(ctx context.Context, userID uuid.UUID) (string, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Select("id", "phone").Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if profile.Phone == nil {
		return "", nil
	}
	return strings.TrimSpace(*profile.Phone), nil
}

// Upsert writes a profile row. Used by seeding tools and tests.
func (r *Repository) Upsert(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlasops/identity/internal/models"
)

// GormStore is the postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection. The connection must be opened with
// error translation enabled so duplicate keys map to ErrConflict.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

// FindUserByID returns the user with the given id.
func (s *GormStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByEmail returns the user with the given email.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByProvider returns the user linked to a provider identity.
func (s *GormStore) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("oauth_provider = ? AND oauth_provider_id = ?", provider, providerID).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// CreateUser inserts a new user.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

// SaveUser persists all fields of an existing user.
func (s *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Save(user).Error)
}

// CountUsers returns the total number of accounts.
func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, translate(err)
}

// ProfileByUserID returns the profile for a user.
func (s *GormStore) ProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// CreateProfile inserts a new profile.
func (s *GormStore) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	return translate(s.db.WithContext(ctx).Create(profile).Error)
}

// SaveProfile persists all fields of an existing profile.
func (s *GormStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	return translate(s.db.WithContext(ctx).Save(profile).Error)
}

// ResetExpiredUsage zeroes usage counters whose reset window has passed.
func (s *GormStore) ResetExpiredUsage(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("resume_generation_reset_at IS NOT NULL AND resume_generation_reset_at <= ?", now).
		Updates(map[string]interface{}{
			"resume_generations_used":    0,
			"resume_generation_reset_at": nil,
		})
	return result.RowsAffected, translate(result.Error)
}

// WithinTx runs fn inside a database transaction.
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Package storefake provides an in-memory identity.Store for tests. It
// enforces the same uniqueness rules as the real store and reports
// violations as identity.ErrConflict.
package storefake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/identity/internal/identity"
	"github.com/atlasops/identity/internal/models"
)

// Store is an in-memory identity.Store.
type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	profiles map[uuid.UUID]*models.UserProfile // keyed by user id

	// OnCreateUser, when set, runs before each insert; returning an error
	// aborts it. Tests use this to simulate concurrent duplicate callbacks.
	OnCreateUser func(user *models.User) error
}

// New creates an empty fake store.
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		profiles: make(map[uuid.UUID]*models.UserProfile),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyProfile(p *models.UserProfile) *models.UserProfile {
	c := *p
	if p.SocialLinks != nil {
		c.SocialLinks = models.JSONMap{}
		for k, v := range p.SocialLinks {
			c.SocialLinks[k] = v
		}
	}
	return &c
}

// FindUserByID implements identity.Store.
func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return copyUser(user), nil
}

// FindUserByEmail implements identity.Store.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, identity.ErrNotFound
}

// FindUserByProvider implements identity.Store.
func (s *Store) FindUserByProvider(_ context.Context, provider, providerID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.OAuthProvider != nil && *user.OAuthProvider == provider &&
			user.OAuthProviderID != nil && *user.OAuthProviderID == providerID {
			return copyUser(user), nil
		}
	}
	return nil, identity.ErrNotFound
}

// CreateUser implements identity.Store.
func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	if s.OnCreateUser != nil {
		if err := s.OnCreateUser(user); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return identity.ErrConflict
		}
		if existing.OAuthProvider != nil && user.OAuthProvider != nil &&
			*existing.OAuthProvider == *user.OAuthProvider &&
			existing.OAuthProviderID != nil && user.OAuthProviderID != nil &&
			*existing.OAuthProviderID == *user.OAuthProviderID {
			return identity.ErrConflict
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	s.users[user.ID] = copyUser(user)
	return nil
}

// SaveUser implements identity.Store.
func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return identity.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = copyUser(user)
	return nil
}

// CountUsers implements identity.Store.
func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// ProfileByUserID implements identity.Store.
func (s *Store) ProfileByUserID(_ context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return copyProfile(profile), nil
}

// CreateProfile implements identity.Store.
func (s *Store) CreateProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.UserID]; ok {
		return identity.ErrConflict
	}

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

// SaveProfile implements identity.Store.
func (s *Store) SaveProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.UserID]; !ok {
		return identity.ErrNotFound
	}
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

// ResetExpiredUsage implements identity.Store.
func (s *Store) ResetExpiredUsage(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, user := range s.users {
		if user.ResumeGenerationResetAt != nil && !user.ResumeGenerationResetAt.After(now) {
			user.ResumeGenerationsUsed = 0
			user.ResumeGenerationResetAt = nil
			count++
		}
	}
	return count, nil
}

// WithinTx implements identity.Store. The fake has no transactions; fn runs
// against the same store.
func (s *Store) WithinTx(_ context.Context, fn func(tx identity.Store) error) error {
	return fn(s)
}

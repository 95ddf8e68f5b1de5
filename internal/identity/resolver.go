// Package identity finds or creates the local account behind a verified
// third-party identity and merges provider data without destructive
// overwrites.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atlasops/identity/internal/models"
	"github.com/atlasops/identity/internal/oauth"
)

// Resolver links verified provider identities to local accounts.
type Resolver struct {
	store Store
	log   zerolog.Logger
}

// NewResolver creates a resolver over the given account store.
func NewResolver(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// UpsertOAuthAccount resolves the account for a verified provider identity.
// Lookup order: exact (provider, providerID) match, then email match with
// the provider's linking policy applied, then account creation. All writes
// for one callback happen in a single transaction; a uniqueness conflict
// from a concurrent duplicate callback is resolved by retrying the lookup
// once instead of surfacing the violation.
func (r *Resolver) UpsertOAuthAccount(ctx context.Context, p *oauth.Provider, info *oauth.UserInfo) (*models.User, error) {
	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("provider %s returned incomplete user info", p.Name)
	}

	user, err := r.resolveOnce(ctx, p, info)
	if errors.Is(err, ErrConflict) {
		// A concurrent callback for the same identity won the race; the
		// row it created satisfies the lookup on a second pass.
		r.log.Info().Str("provider", p.Name).Msg("identity: duplicate-account race detected, retrying lookup")
		user, err = r.resolveOnce(ctx, p, info)
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Resolver) resolveOnce(ctx context.Context, p *oauth.Provider, info *oauth.UserInfo) (*models.User, error) {
	var resolved *models.User

	err := r.store.WithinTx(ctx, func(tx Store) error {
		user, err := tx.FindUserByProvider(ctx, p.Name, info.Subject)
		switch {
		case err == nil:
			// Returning OAuth user; bump timestamps.
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
		case errors.Is(err, ErrNotFound):
			user, err = r.linkOrCreate(ctx, tx, p, info)
			if err != nil {
				return err
			}
		default:
			return err
		}

		if err := r.upsertProfile(ctx, tx, user, p, info); err != nil {
			return err
		}

		resolved = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}

func (r *Resolver) linkOrCreate(ctx context.Context, tx Store, p *oauth.Provider, info *oauth.UserInfo) (*models.User, error) {
	user, err := tx.FindUserByEmail(ctx, info.Email)
	switch {
	case err == nil:
		// Linking policy is per provider: some providers may claim an
		// already-established identity, others only an unlinked one.
		if p.LinkExisting || !user.HasProviderLink() {
			provider := p.Name
			providerID := info.Subject
			user.OAuthProvider = &provider
			user.OAuthProviderID = &providerID
			r.log.Info().Str("provider", p.Name).Str("user_id", user.ID.String()).Msg("identity: linked provider to existing account")
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return nil, err
		}
		return user, nil

	case errors.Is(err, ErrNotFound):
		provider := p.Name
		providerID := info.Subject
		user = &models.User{
			Email:              info.Email,
			OAuthProvider:      &provider,
			OAuthProviderID:    &providerID,
			SubscriptionTier:   "free",
			SubscriptionStatus: "free",
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		r.log.Info().Str("provider", p.Name).Str("user_id", user.ID.String()).Msg("identity: created account for new identity")
		return user, nil

	default:
		return nil, err
	}
}

// upsertProfile backfills empty profile fields from provider data and adds
// the provider's profile URL to the social-links union. Populated fields
// are left untouched.
func (r *Resolver) upsertProfile(ctx context.Context, tx Store, user *models.User, p *oauth.Provider, info *oauth.UserInfo) error {
	profile, err := tx.ProfileByUserID(ctx, user.ID)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		profile = &models.UserProfile{UserID: user.ID}
		created = true
	case err != nil:
		return err
	}

	changed := false

	if profile.FullName == nil || *profile.FullName == "" {
		if name := displayName(info); name != "" {
			profile.FullName = &name
			changed = true
		}
	}

	if (profile.ProfilePictureURL == nil || *profile.ProfilePictureURL == "") && info.Picture != "" {
		picture := info.Picture
		profile.ProfilePictureURL = &picture
		changed = true
	}

	if info.Profile != "" {
		if profile.SocialLinks == nil {
			profile.SocialLinks = models.JSONMap{}
		}
		if _, exists := profile.SocialLinks[p.Name]; !exists {
			profile.SocialLinks[p.Name] = info.Profile
			changed = true
		}
	}

	if created {
		return tx.CreateProfile(ctx, profile)
	}
	if changed {
		return tx.SaveProfile(ctx, profile)
	}
	return nil
}

// displayName prefers the provider's full name, falls back to concatenating
// given and family names, and otherwise stays empty. No placeholder is
// ever substituted.
func displayName(info *oauth.UserInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return strings.TrimSpace(info.GivenName + " " + info.FamilyName)
}

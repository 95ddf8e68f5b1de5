package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a local account. Accounts created through an OAuth
// callback have no password hash; accounts created through registration
// have no provider linkage until one is established.
type User struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	HashedPassword *string   `json:"-" gorm:"size:255"` // Never expose password hash in JSON

	// OAuth linkage; unique together when set (partial index in migrations).
	OAuthProvider   *string `json:"oauth_provider" gorm:"size:50"`
	OAuthProviderID *string `json:"oauth_provider_id" gorm:"size:255"`

	IsAdmin bool `json:"is_admin" gorm:"not null;default:false"`

	// Subscription/billing fields
	SubscriptionTier     string     `json:"subscription_tier" gorm:"size:50;not null;default:free"`
	SubscriptionStatus   string     `json:"subscription_status" gorm:"size:50;not null;default:free"`
	StripeCustomerID     *string    `json:"-" gorm:"size:255"`
	StripeSubscriptionID *string    `json:"-" gorm:"size:255"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`

	// Usage tracking
	ResumeGenerationsUsed   int        `json:"resume_generations_used" gorm:"not null;default:0"`
	ResumeGenerationResetAt *time.Time `json:"resume_generation_reset_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *UserProfile `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for User.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account can authenticate with credentials.
func (u *User) HasPassword() bool {
	return u.HashedPassword != nil && *u.HashedPassword != ""
}

// HasProviderLink reports whether the account is linked to any OAuth provider.
func (u *User) HasProviderLink() bool {
	return u.OAuthProvider != nil && *u.OAuthProvider != ""
}

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/identity/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint
// (duplicate email, duplicate provider identity).
var ErrConflict = errors.New("conflict")

// Store is the durable account store. Implementations must enforce the
// uniqueness of email and of (oauth_provider, oauth_provider_id) and
// translate constraint violations into ErrConflict.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	CountUsers(ctx context.Context) (int64, error)

	ProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	SaveProfile(ctx context.Context, profile *models.UserProfile) error

	// ResetExpiredUsage zeroes usage counters whose reset window has passed
	// and returns the number of accounts touched.
	ResetExpiredUsage(ctx context.Context, now time.Time) (int64, error)

	// WithinTx runs fn in one logical unit of work. The Store passed to fn
	// must be used for every access inside the transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

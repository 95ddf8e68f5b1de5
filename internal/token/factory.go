// Package token mints and validates the signed access/refresh token pairs
// that the rest of the platform trusts.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atlasops/identity/internal/config"
)

// ErrInvalidToken covers signature, expiry, and malformed-claim failures.
// Callers collapse all of them into one generic 401 so nothing leaks about
// which check failed.
var ErrInvalidToken = errors.New("invalid token")

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Claims is the decoded, typed claim set. IsRefresh is a proper field so
// the "refresh tokens never authorize resource access" rule is checked on
// a struct member, not a string lookup in a claim bag.
type Claims struct {
	Subject   uuid.UUID
	ExpiresAt time.Time
	IsRefresh bool
}

type jwtClaims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Factory signs both token kinds with one symmetric HS256 key.
type Factory struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewFactory creates a factory from configuration. Non-positive TTLs fall
// back to the defaults; a token is never issued with a zero lifetime.
func NewFactory(cfg config.JWTConfig) *Factory {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &Factory{
		secret:     []byte(cfg.Secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// CreateTokenPair mints an access token and a refresh token for an account.
// The refresh token carries the type=refresh discriminator claim.
func (f *Factory) CreateTokenPair(userID uuid.UUID) (*Pair, error) {
	access, err := f.sign(userID, f.accessTTL, "")
	if err != nil {
		return nil, err
	}

	refresh, err := f.sign(userID, f.refreshTTL, "refresh")
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (f *Factory) sign(userID uuid.UUID, ttl time.Duration, tokenType string) (string, error) {
	claims := jwtClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Decode verifies the signature and expiry and returns the typed claim set.
// It performs no database access.
func (f *Factory) Decode(raw string) (*Claims, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return f.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject:   subject,
		ExpiresAt: claims.ExpiresAt.Time,
		IsRefresh: claims.Type == "refresh",
	}, nil
}

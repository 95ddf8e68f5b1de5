// Package state issues and consumes the one-time anti-CSRF tokens that bind
// an authorize request to its callback.
package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// TTL is how long a state token stays consumable after creation.
const TTL = 10 * time.Minute

// Store issues single-use state tokens. TryConsume removes the token
// atomically: two concurrent calls for the same token never both succeed,
// and a token is never consumable again after the first attempt, whatever
// the result.
type Store interface {
	Create(ctx context.Context) (string, error)
	TryConsume(ctx context.Context, token string) bool
}

// newToken returns a URL-safe token with 32 bytes of entropy.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

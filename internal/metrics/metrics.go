// Package metrics exposes prometheus counters for authentication outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts credential logins by result (success, failure).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_login_attempts_total",
			Help: "Credential login attempts by result.",
		},
		[]string{"result"},
	)

	// OAuthCallbacks counts OAuth callback outcomes by provider and result
	// code (success or one of the stable failure codes).
	OAuthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_oauth_callbacks_total",
			Help: "OAuth callback outcomes by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// TokensIssued counts minted token pairs.
	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_token_pairs_issued_total",
			Help: "Access/refresh token pairs issued.",
		},
	)
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

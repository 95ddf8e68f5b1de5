package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/atlasops/identity/internal/config"
	"github.com/atlasops/identity/internal/identity"
	"github.com/atlasops/identity/internal/metrics"
	"github.com/atlasops/identity/internal/oauth"
	"github.com/atlasops/identity/internal/oauth/state"
	"github.com/atlasops/identity/internal/token"
)

// Failure reasons that originate here rather than in the provider client.
const (
	errInvalidState  = "invalid_state"
	errNotConfigured = "oauth_not_configured"
)

// CodeExchanger performs the two-leg code exchange. *oauth.Client is the
// production implementation.
type CodeExchanger interface {
	ExchangeCodeForUser(ctx context.Context, p *oauth.Provider, creds config.ProviderCredentials, code string) (*oauth.UserInfo, *oauth.FlowError)
}

// AuthorizeResponse carries the provider authorization URL and the state
// token bound to it.
type AuthorizeResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// HandleOAuthAuthorize starts the flow for a provider: it creates a state
// token and returns the authorization URL embedding it. An unconfigured
// provider fails before any state is created.
func HandleOAuthAuthorize(cfg *config.Config, states state.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")

		provider, ok := oauth.LookupProvider(name)
		if !ok {
			writeDetail(w, http.StatusNotFound, "Unknown provider")
			return
		}

		creds := cfg.Provider(name)
		if !creds.Configured() {
			writeDetail(w, http.StatusServiceUnavailable, "provider not configured")
			return
		}

		stateToken, err := states.Create(r.Context())
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("oauth: failed to create state token")
			writeDetail(w, http.StatusInternalServerError, "Failed to initiate OAuth")
			return
		}

		writeJSON(w, http.StatusOK, AuthorizeResponse{
			URL:   provider.BuildAuthorizeURL(creds, stateToken),
			State: stateToken,
		})
	}
}

// HandleOAuthCallback completes the flow. The state token is consumed
// before anything else, configuration checks included, so a replayed or
// forged callback can never succeed even against a misconfigured provider.
func HandleOAuthCallback(cfg *config.Config, states state.Store, client CodeExchanger, resolver *identity.Resolver, factory *token.Factory, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		code := r.URL.Query().Get("code")
		stateToken := r.URL.Query().Get("state")

		fail := func(reason string) {
			metrics.OAuthCallbacks.WithLabelValues(name, reason).Inc()
			redirectLoginError(w, r, cfg.FrontendURL, reason)
		}

		if !states.TryConsume(r.Context(), stateToken) {
			log.Warn().Str("provider", name).Msg("oauth: callback with invalid or replayed state")
			fail(errInvalidState)
			return
		}

		provider, ok := oauth.LookupProvider(name)
		creds := cfg.Provider(name)
		if !ok || !creds.Configured() {
			fail(errNotConfigured)
			return
		}

		info, ferr := client.ExchangeCodeForUser(r.Context(), provider, creds, code)
		if ferr != nil {
			fail(ferr.Code)
			return
		}

		user, err := resolver.UpsertOAuthAccount(r.Context(), provider, info)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("oauth: account resolution failed")
			fail(oauth.ErrNetwork)
			return
		}

		pair, err := factory.CreateTokenPair(user.ID)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("oauth: failed to mint token pair")
			fail(oauth.ErrNetwork)
			return
		}

		metrics.OAuthCallbacks.WithLabelValues(name, "success").Inc()
		metrics.TokensIssued.Inc()
		redirectWithTokens(w, r, cfg.FrontendURL, pair)
	}
}

func redirectLoginError(w http.ResponseWriter, r *http.Request, frontendURL, reason string) {
	http.Redirect(w, r, frontendURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// redirectWithTokens sends the browser to the frontend with the token pair
// in the URL fragment. Fragments never reach a server or a Referer header,
// unlike query parameters.
func redirectWithTokens(w http.ResponseWriter, r *http.Request, frontendURL string, pair *token.Pair) {
	fragment := url.Values{}
	fragment.Set("access_token", pair.AccessToken)
	fragment.Set("refresh_token", pair.RefreshToken)
	fragment.Set("token_type", pair.TokenType)

	http.Redirect(w, r, frontendURL+"/oauth/callback#"+fragment.Encode(), http.StatusFound)
}

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasops/identity/internal/config"
)

var testCreds = config.ProviderCredentials{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RedirectURI:  "http://localhost:8080/api/v1/auth/test/callback",
}

func testProvider(tokenURL, userInfoURL string) *Provider {
	return &Provider{
		Name:        "test",
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
		Scopes:      "openid email profile",
	}
}

func tokenEndpoint(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, testCreds.ClientID, r.PostForm.Get("client_id"))
		assert.Equal(t, testCreds.ClientSecret, r.PostForm.Get("client_secret"))
		assert.Equal(t, testCreds.RedirectURI, r.PostForm.Get("redirect_uri"))

		json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken})
	}))
}

func TestExchangeCodeForUser(t *testing.T) {
	tokens := tokenEndpoint(t, "provider-token")
	defer tokens.Close()

	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer provider-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"sub":     "subject-1",
			"email":   "jane@example.com",
			"name":    "Jane Doe",
			"picture": "https://cdn.example.com/jane.png",
			"profile": "https://provider.example.com/jane",
		})
	}))
	defer userinfo.Close()

	client := NewClient(zerolog.Nop())
	info, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, userinfo.URL), testCreds, "the-code")
	require.Nil(t, ferr)

	assert.Equal(t, "subject-1", info.Subject)
	assert.Equal(t, "jane@example.com", info.Email)
	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "https://cdn.example.com/jane.png", info.Picture)
	assert.Equal(t, "https://provider.example.com/jane", info.Profile)
}

func TestExchangeCodeRejected(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokens.Close()

	client := NewClient(zerolog.Nop())
	info, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, "http://unused"), testCreds, "bad-code")
	require.Nil(t, info)
	require.NotNil(t, ferr)
	assert.Equal(t, ErrTokenExchange, ferr.Code)
}

func TestExchangeCodeMissingAccessToken(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	defer tokens.Close()

	client := NewClient(zerolog.Nop())
	_, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, "http://unused"), testCreds, "the-code")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrTokenExchange, ferr.Code)
}

func TestUserInfoRejected(t *testing.T) {
	tokens := tokenEndpoint(t, "provider-token")
	defer tokens.Close()

	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer userinfo.Close()

	client := NewClient(zerolog.Nop())
	_, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, userinfo.URL), testCreds, "the-code")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrUserInfo, ferr.Code)
}

func TestUserInfoMissingRequiredClaims(t *testing.T) {
	tokens := tokenEndpoint(t, "provider-token")
	defer tokens.Close()

	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// sub present, email absent.
		json.NewEncoder(w).Encode(map[string]string{"sub": "subject-1", "name": "Jane Doe"})
	}))
	defer userinfo.Close()

	client := NewClient(zerolog.Nop())
	_, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, userinfo.URL), testCreds, "the-code")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrMissingUserData, ferr.Code)
}

func TestTokenEndpointUnreachable(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokens.Close() // nothing listening anymore

	client := NewClient(zerolog.Nop())
	_, ferr := client.ExchangeCodeForUser(context.Background(), testProvider(tokens.URL, "http://unused"), testCreds, "the-code")
	require.NotNil(t, ferr)
	assert.Equal(t, ErrNetwork, ferr.Code)
}

func TestBuildAuthorizeURL(t *testing.T) {
	provider, ok := LookupProvider(config.ProviderGoogle)
	require.True(t, ok)

	raw := provider.BuildAuthorizeURL(testCreds, "the-state")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testCreds.ClientID, q.Get("client_id"))
	assert.Equal(t, testCreds.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}

func TestLookupProvider(t *testing.T) {
	for _, name := range []string{config.ProviderLinkedIn, config.ProviderGoogle} {
		_, ok := LookupProvider(name)
		assert.True(t, ok, name)
	}

	_, ok := LookupProvider("facebook")
	assert.False(t, ok)
}

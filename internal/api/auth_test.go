package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlasops/identity/internal/models"
	"github.com/atlasops/identity/internal/token"
)

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) getWithToken(path, accessToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedUser(t *testing.T, email, password string, admin bool) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	hashedStr := string(hashed)
	user := &models.User{
		Email:          email,
		HashedPassword: &hashedStr,
		IsAdmin:        admin,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/v1/auth/register", RegisterRequest{
		Email:    "Jane@Example.com",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "jane@example.com", created.Email, "emails are normalized to lowercase")
	assert.False(t, created.IsAdmin)

	rec = env.postJSON(t, "/api/v1/auth/login", LoginRequest{
		Email:    "jane@example.com",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	pair := decodeBody[token.Pair](t, rec)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	rec = env.getWithToken("/api/v1/auth/me", pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[UserResponse](t, rec)
	assert.Equal(t, created.ID, me.ID)
	assert.Equal(t, "jane@example.com", me.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jane@example.com", "hunter2hunter2", false)

	rec := env.postJSON(t, "/api/v1/auth/register", RegisterRequest{
		Email:    "jane@example.com",
		Password: "different-password",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Email already registered", body["detail"])
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/api/v1/auth/register", RegisterRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postJSON(t, "/api/v1/auth/register", RegisterRequest{Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "jane@example.com", "hunter2hunter2", false)

	rec := env.postJSON(t, "/api/v1/auth/login", LoginRequest{
		Email:    "jane@example.com",
		Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Incorrect email or password", body["detail"])
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	env := newTestEnv(t)

	provider := "google"
	providerID := "google-sub-1"
	require.NoError(t, env.store.CreateUser(context.Background(), &models.User{
		Email:           "jane@example.com",
		OAuthProvider:   &provider,
		OAuthProviderID: &providerID,
	}))

	rec := env.postJSON(t, "/api/v1/auth/login", LoginRequest{
		Email:    "jane@example.com",
		Password: "anything",
	})
	// Indistinguishable from a wrong password.
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Incorrect email or password", body["detail"])
}

func TestAuthMiddlewareRejections(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "jane@example.com", "hunter2hunter2", false)

	pair, err := env.factory.CreateTokenPair(user.ID)
	require.NoError(t, err)

	cases := map[string]string{
		"no token":      "",
		"garbage token": "not-a-jwt",
		"refresh token": pair.RefreshToken,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.getWithToken("/api/v1/auth/me", tok)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

			body := decodeBody[map[string]string](t, rec)
			assert.Equal(t, "Could not validate credentials", body["detail"])
		})
	}

	// The access token from the same pair works.
	rec := env.getWithToken("/api/v1/auth/me", pair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointRequiresAdminFlag(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "jane@example.com", "hunter2hunter2", false)
	admin := env.seedUser(t, "root@example.com", "hunter2hunter2", true)

	pair, err := env.factory.CreateTokenPair(user.ID)
	require.NoError(t, err)
	rec := env.getWithToken("/api/v1/auth/admin/users", pair.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	pair, err = env.factory.CreateTokenPair(admin.ID)
	require.NoError(t, err)
	rec = env.getWithToken("/api/v1/auth/admin/users", pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]int64](t, rec)
	assert.Equal(t, int64(2), body["total_users"])
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "jane@example.com", "hunter2hunter2", false)

	pair, err := env.factory.CreateTokenPair(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
}

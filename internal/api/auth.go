package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlasops/identity/internal/identity"
	"github.com/atlasops/identity/internal/metrics"
	"github.com/atlasops/identity/internal/models"
	"github.com/atlasops/identity/internal/token"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated account attached by
// AuthMiddleware. Downstream routers read the principal from here.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// RegisterRequest represents a registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the account summary returned to clients.
type UserResponse struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	IsAdmin            bool      `json:"is_admin"`
	OAuthProvider      *string   `json:"oauth_provider"`
	SubscriptionTier   string    `json:"subscription_tier"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
}

func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:                 user.ID.String(),
		Email:              user.Email,
		IsAdmin:            user.IsAdmin,
		OAuthProvider:      user.OAuthProvider,
		SubscriptionTier:   user.SubscriptionTier,
		SubscriptionStatus: user.SubscriptionStatus,
		CreatedAt:          user.CreatedAt,
	}
}

// HandleRegister creates a new credential account with an empty profile.
func HandleRegister(store identity.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			writeDetail(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msg("register: failed to hash password")
			writeDetail(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		hashedStr := string(hashed)
		user := &models.User{
			Email:              req.Email,
			HashedPassword:     &hashedStr,
			SubscriptionTier:   "free",
			SubscriptionStatus: "free",
		}

		err = store.WithinTx(r.Context(), func(tx identity.Store) error {
			if err := tx.CreateUser(r.Context(), user); err != nil {
				return err
			}
			return tx.CreateProfile(r.Context(), &models.UserProfile{UserID: user.ID})
		})
		if errors.Is(err, identity.ErrConflict) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("register: failed to create user")
			writeDetail(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		writeJSON(w, http.StatusCreated, userResponse(user))
	}
}

// HandleLogin authenticates credentials and returns a token pair. OAuth-only
// accounts fail with the same message as a wrong password.
func HandleLogin(store identity.Store, factory *token.Factory, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		email := strings.TrimSpace(strings.ToLower(req.Email))

		user, err := store.FindUserByEmail(r.Context(), email)
		if err != nil || !user.HasPassword() ||
			bcrypt.CompareHashAndPassword([]byte(*user.HashedPassword), []byte(req.Password)) != nil {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}

		pair, err := factory.CreateTokenPair(user.ID)
		if err != nil {
			log.Error().Err(err).Msg("login: failed to mint token pair")
			writeDetail(w, http.StatusInternalServerError, "Login failed")
			return
		}

		metrics.LoginAttempts.WithLabelValues("success").Inc()
		metrics.TokensIssued.Inc()
		writeJSON(w, http.StatusOK, pair)
	}
}

// HandleLogout acknowledges logout; tokens are discarded client-side.
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
	}
}

// HandleGetCurrentUser returns the authenticated account summary.
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		writeJSON(w, http.StatusOK, userResponse(user))
	}
}

// HandleAdminUserCount returns the total account count.
func HandleAdminUserCount(store identity.Store, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := store.CountUsers(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("admin: failed to count users")
			writeDetail(w, http.StatusInternalServerError, "Database error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"total_users": count})
	}
}

// AuthMiddleware validates bearer tokens on protected routes. It rejects
// refresh tokens presented as access tokens and sources the admin flag and
// email from the account record, so revocations apply on the next request
// rather than at token expiry.
func AuthMiddleware(factory *token.Factory, store identity.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeUnauthorized(w)
				return
			}

			claims, err := factory.Decode(tokenString)
			if err != nil || claims.IsRefresh {
				writeUnauthorized(w)
				return
			}

			user, err := store.FindUserByID(r.Context(), claims.Subject)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on the authoritative admin flag. Must run
// after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		if !user.IsAdmin {
			writeDetail(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

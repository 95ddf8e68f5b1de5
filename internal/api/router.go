package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/atlasops/identity/internal/config"
	"github.com/atlasops/identity/internal/identity"
	"github.com/atlasops/identity/internal/logging"
	"github.com/atlasops/identity/internal/metrics"
	"github.com/atlasops/identity/internal/oauth/state"
	"github.com/atlasops/identity/internal/token"
)

// NewRouter creates the HTTP router.
func NewRouter(
	cfg *config.Config,
	store identity.Store,
	states state.Store,
	client CodeExchanger,
	resolver *identity.Resolver,
	factory *token.Factory,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware(cfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	apiLimiter := NewRateLimiter(20, 40)
	apiLimiter.CleanupOldLimiters()
	authLimiter := NewRateLimiter(5, 10)
	authLimiter.CleanupOldLimiters()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(apiLimiter))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(authLimiter))

				r.Post("/register", HandleRegister(store, log))
				r.Post("/login", HandleLogin(store, factory, log))
				r.Get("/{provider}/authorize", HandleOAuthAuthorize(cfg, states, log))
				r.Get("/{provider}/callback", HandleOAuthCallback(cfg, states, client, resolver, factory, log))
			})

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(factory, store))

				r.Post("/logout", HandleLogout())
				r.Get("/me", HandleGetCurrentUser())

				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Get("/admin/users", HandleAdminUserCount(store, log))
				})
			})
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	return r
}

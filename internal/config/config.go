package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted by the authorize/callback endpoints.
const (
	ProviderLinkedIn = "linkedin"
	ProviderGoogle   = "google"
)

// Config holds application configuration.
type Config struct {
	Port        int
	Environment string
	Database    DatabaseConfig
	JWT         JWTConfig
	CORSOrigins []string

	// FrontendURL is where browsers are sent after an OAuth callback.
	FrontendURL string

	// RedisAddr selects the distributed state store when non-empty.
	RedisAddr string
	RedisDB   int

	Providers map[string]ProviderCredentials
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ProviderCredentials holds the per-provider OAuth client credentials.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Configured reports whether the provider is usable. Both the client id and
// the client secret must be present; the redirect URI has a default.
func (p ProviderCredentials) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Provider returns the credentials for a provider name, zero value if unknown.
func (c *Config) Provider(name string) ProviderCredentials {
	return c.Providers[name]
}

// Load loads configuration from environment variables. Values set in the
// process environment win over .env-file values (godotenv never overrides
// existing variables), which win over the hardcoded defaults below.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "production")

	jwtSecret, err := loadJWTSecret(env)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: env,
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:     jwtSecret,
			AccessTTL:  accessTTL(),
			RefreshTTL: refreshTTL(),
		},
		CORSOrigins: loadCORSOrigins(),
		FrontendURL: firstNonEmpty(
			os.Getenv("FRONTEND_URL"),
			"http://localhost:5173",
		),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		Providers: loadProviders(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// accessTTL falls back to 30 minutes whenever the configured value is absent
// or non-positive so a token is never minted with a zero lifetime.
func accessTTL() time.Duration {
	minutes := getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func refreshTTL() time.Duration {
	days := getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func loadProviders() map[string]ProviderCredentials {
	return map[string]ProviderCredentials{
		ProviderLinkedIn: {
			ClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
			ClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
			RedirectURI: firstNonEmpty(
				os.Getenv("LINKEDIN_REDIRECT_URI"),
				"http://localhost:8080/api/v1/auth/linkedin/callback",
			),
		},
		ProviderGoogle: {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI: firstNonEmpty(
				os.Getenv("GOOGLE_REDIRECT_URI"),
				"http://localhost:8080/api/v1/auth/google/callback",
			),
		},
	}
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "atlas")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "atlas")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWT.Secret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value; set a strong random secret")
			}
		}
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		return fmt.Errorf("FRONTEND_URL is not a valid URL: %w", err)
	}

	return nil
}

func loadJWTSecret(env string) (string, error) {
	secret := os.Getenv("JWT_SECRET")

	if secret == "" {
		if env == "production" {
			return "", fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		// Development convenience only; tokens do not survive a restart.
		return generateRandomSecret()
	}

	if len(secret) < 16 {
		return "", fmt.Errorf("JWT_SECRET must be at least 16 characters long")
	}

	return secret, nil
}

func loadCORSOrigins() []string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return splitAndTrim(origins, ",")
	}

	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		return []string{strings.TrimRight(frontend, "/")}
	}

	return []string{"http://localhost:5173", "http://localhost:3000"}
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func generateRandomSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	PublicURL   string
	FrontendURL string
}

// OAuthProviderConfig holds one provider's client registration. TenantID is
// only meaningful for Azure.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TenantID     string
}

// Enabled reports whether the provider is fully configured.
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}

// OriginAllowlist partitions allowed origins by environment. Production
// entries always apply; loopback entries additionally apply outside
// production.
type OriginAllowlist struct {
	Production []string
	Loopback   []string
}

// Entries returns the effective allowlist for the given environment.
func (a OriginAllowlist) Entries(env string) []string {
	if env == "production" {
		return a.Production
	}
	return append(append([]string{}, a.Production...), a.Loopback...)
}

type AuthConfig struct {
	CookieDomain      string
	SessionTTL        time.Duration
	InactivityTimeout time.Duration
	HandshakeTTL      time.Duration
	SweepInterval     time.Duration
	DevBypass         bool
	Google            OAuthProviderConfig
	Azure             OAuthProviderConfig
	RedirectAllowlist []string
	Origins           OriginAllowlist
}

// loopbackOrigins are accepted outside production in addition to the
// configured production entries.
var loopbackOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	frontendURL := strings.TrimRight(getEnv("SERVER_FRONTEND_URL", "http://localhost:3000"), "/")
	publicURL := strings.TrimRight(getEnv("SERVER_PUBLIC_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		Database: DatabaseConfig{
			URL:               databaseURL,
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Env:         env,
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			PublicURL:   publicURL,
			FrontendURL: frontendURL,
		},
		Auth: AuthConfig{
			CookieDomain:      getEnv("AUTH_COOKIE_DOMAIN", ""),
			SessionTTL:        time.Duration(getEnvAsInt("AUTH_SESSION_TTL_SECONDS", 30*24*60*60)) * time.Second,
			InactivityTimeout: time.Duration(getEnvAsInt("AUTH_SESSION_INACTIVITY_TIMEOUT_MINUTES", 0)) * time.Minute,
			HandshakeTTL:      10 * time.Minute,
			SweepInterval:     getEnvAsDuration("AUTH_SWEEP_INTERVAL", 15*time.Minute),
			// The bypass is additionally gated on env and loopback Host at
			// request time; outside development it is unconditionally off.
			DevBypass: env == "development" && getEnvAsBool("AUTH_DEV_BYPASS", false),
			// Compound provider variables are read by literal name; the
			// AUTH_OAUTH_* list is an external contract (underscores in the
			// names do not follow the generic key convention).
			Google: OAuthProviderConfig{
				ClientID:     os.Getenv("AUTH_OAUTH_GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("AUTH_OAUTH_GOOGLE_CLIENT_SECRET"),
				RedirectURI:  os.Getenv("AUTH_OAUTH_GOOGLE_REDIRECT_URI"),
			},
			Azure: OAuthProviderConfig{
				ClientID:     os.Getenv("AUTH_OAUTH_AZURE_CLIENT_ID"),
				ClientSecret: os.Getenv("AUTH_OAUTH_AZURE_CLIENT_SECRET"),
				RedirectURI:  os.Getenv("AUTH_OAUTH_AZURE_REDIRECT_URI"),
				TenantID:     os.Getenv("AUTH_OAUTH_AZURE_TENANT_ID"),
			},
			RedirectAllowlist: parseRedirectAllowlist(env, frontendURL),
			Origins: OriginAllowlist{
				Production: parseOrigins(frontendURL, publicURL),
				Loopback:   loopbackOrigins,
			},
		},
	}

	if !cfg.Auth.Google.Enabled() && !cfg.Auth.Azure.Enabled() {
		return nil, fmt.Errorf("at least one OAuth provider must be configured")
	}

	if env == "production" && cfg.Auth.CookieDomain == "" {
		return nil, fmt.Errorf("AUTH_COOKIE_DOMAIN is required in production")
	}

	return cfg, nil
}

func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// parseRedirectAllowlist builds the post-login redirect allowlist: the
// frontend URL, any explicit AUTH_REDIRECT_URI_ALLOWLIST entries, and, off
// production, the loopback origins.
func parseRedirectAllowlist(env, frontendURL string) []string {
	allowed := []string{frontendURL}

	if extra := getEnv("AUTH_REDIRECT_URI_ALLOWLIST", ""); extra != "" {
		for _, uri := range strings.Split(extra, ",") {
			if uri = strings.TrimRight(strings.TrimSpace(uri), "/"); uri != "" {
				allowed = append(allowed, uri)
			}
		}
	}

	if env != "production" {
		allowed = append(allowed, loopbackOrigins...)
	}

	return allowed
}

func parseOrigins(frontendURL, publicURL string) []string {
	origins := []string{frontendURL, publicURL}

	if extra := getEnv("AUTH_ALLOWED_ORIGINS", ""); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	return origins
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

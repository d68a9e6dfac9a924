package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	minJWTSecretLength = 32
	minTokenTTL        = time.Minute
	maxTokenTTL        = 24 * time.Hour
)

// weakSecrets are well-known placeholder values that must never sign production tokens.
var weakSecrets = []string{
	"your-secret-key-change-in-production",
	"dev-jwt-secret-key-not-for-production-use-only",
	"change-me",
	"secret",
	"password",
	"12345",
}

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix="`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Cookie   CookieConfig   `env:",prefix=COOKIE_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	OAuth    OAuthConfig    `env:",prefix=OAUTH_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START,default=true"`
}

type RedisConfig struct {
	Enabled  bool   `env:"ENABLED,default=false"`
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret string   `env:"SECRET"`
	TTL    Duration `env:"TTL,default=30m"`
}

type CookieConfig struct {
	Secure bool   `env:"SECURE,default=true"`
	Domain string `env:"DOMAIN,default="`
}

type SecurityConfig struct {
	BCryptCost         int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests  int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow    Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	LoginMaxFailures   int      `env:"LOGIN_MAX_FAILURES,default=5"`
	LoginLockoutWindow Duration `env:"LOGIN_LOCKOUT_WINDOW,default=15m"`
	TokenRevocation    bool     `env:"TOKEN_REVOCATION,default=true"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

type OAuthConfig struct {
	Google OAuthClientConfig `env:",prefix=GOOGLE_"`
	Apple  OAuthClientConfig `env:",prefix=APPLE_"`
}

// OAuthClientConfig is the client registration for one provider.
// A provider is enabled when its client id is set.
type OAuthClientConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled reports whether the provider has been configured.
func (o OAuthClientConfig) Enabled() bool {
	return o.ClientID != ""
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsProduction reports whether the process runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from environment variables and validates it.
// Validation failures are reported together as a *ConfigurationError.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		problems := []string{err.Error()}
		problems = append(problems, missingRequired(lookuper)...)
		return nil, &ConfigurationError{Problems: problems}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks every constraint and returns all violations at once.
func (c *Config) Validate() error {
	var problems []string

	switch secret := c.JWT.Secret; {
	case secret == "":
		problems = append(problems, "JWT_SECRET is required")
	case len(secret) < minJWTSecretLength:
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters long", minJWTSecretLength))
	case isWeakSecret(secret):
		problems = append(problems, "JWT_SECRET appears to be a default or weak value")
	case c.IsProduction() && (strings.Contains(strings.ToLower(secret), "dev") || strings.Contains(strings.ToLower(secret), "test")):
		problems = append(problems, "JWT_SECRET appears to be a development key")
	}

	if ttl := c.JWT.TTL.Duration; ttl < minTokenTTL || ttl > maxTokenTTL {
		problems = append(problems, fmt.Sprintf("JWT_TTL must be between %s and %s", minTokenTTL, maxTokenTTL))
	}

	switch url := c.Database.URL; {
	case url == "":
		problems = append(problems, "DATABASE_URL is required")
	case !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://"):
		problems = append(problems, "DATABASE_URL must be a PostgreSQL connection URL")
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		problems = append(problems, "CORS_ALLOWED_ORIGINS must contain at least one origin")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			problems = append(problems, fmt.Sprintf("CORS origin must start with http:// or https://: %s", origin))
			continue
		}
		if c.IsProduction() && !strings.HasPrefix(origin, "https://") && !strings.HasPrefix(origin, "http://localhost") {
			problems = append(problems, fmt.Sprintf("CORS origin should use HTTPS in production: %s", origin))
		}
	}

	problems = append(problems, c.OAuth.Google.problems("GOOGLE")...)
	problems = append(problems, c.OAuth.Apple.problems("APPLE")...)

	if c.Security.BCryptCost < 4 || c.Security.BCryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if c.Security.LoginMaxFailures < 1 {
		problems = append(problems, "LOGIN_MAX_FAILURES must be positive")
	}
	if c.Security.LoginLockoutWindow.Duration <= 0 {
		problems = append(problems, "LOGIN_LOCKOUT_WINDOW must be positive")
	}
	if c.Security.RateLimitRequests < 1 {
		problems = append(problems, "RATE_LIMIT_REQUESTS must be positive")
	}
	if c.Security.RateLimitWindow.Duration <= 0 {
		problems = append(problems, "RATE_LIMIT_WINDOW must be positive")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func (o OAuthClientConfig) problems(name string) []string {
	if !o.Enabled() {
		if o.ClientSecret != "" {
			return []string{fmt.Sprintf("OAUTH_%s_CLIENT_ID is required when OAUTH_%s_CLIENT_SECRET is set", name, name)}
		}
		return nil
	}

	var problems []string
	if o.ClientSecret == "" {
		problems = append(problems, fmt.Sprintf("OAUTH_%s_CLIENT_SECRET is required when OAUTH_%s_CLIENT_ID is set", name, name))
	}
	if o.RedirectURL == "" {
		problems = append(problems, fmt.Sprintf("OAUTH_%s_REDIRECT_URL is required when OAUTH_%s_CLIENT_ID is set", name, name))
	}
	return problems
}

// requiredVariables have no default; they are reported even when another
// variable fails to decode.
var requiredVariables = []string{"JWT_SECRET", "DATABASE_URL"}

func missingRequired(lookuper envconfig.Lookuper) []string {
	var problems []string
	for _, name := range requiredVariables {
		if value, ok := lookuper.Lookup(name); !ok || value == "" {
			problems = append(problems, name+" is required")
		}
	}
	return problems
}

func isWeakSecret(secret string) bool {
	for _, weak := range weakSecrets {
		if strings.EqualFold(secret, weak) {
			return true
		}
	}
	return false
}

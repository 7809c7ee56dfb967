package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Admin    AdminConfig    `env:",prefix=ADMIN_"`
	OAuth    OAuthConfig    `env:",prefix=OAUTH_"`
	Relay    RelayConfig    `env:",prefix=RELAY_"`
	Jobs     JobsConfig     `env:",prefix=JOBS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=30s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=access_service"`
	Password string `env:"PASSWORD,default=access_service_password"`
	DBName   string `env:"DB,default=access_service_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret             string   `env:"SECRET,required"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=1h"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=30d"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// SessionConfig bounds every step of session bootstrap
type SessionConfig struct {
	FullQueryTimeout   Duration `env:"FULL_QUERY_TIMEOUT,default=5s"`
	NarrowQueryTimeout Duration `env:"NARROW_QUERY_TIMEOUT,default=2s"`
	LoadingCeiling     Duration `env:"LOADING_CEILING,default=12s"`
	CacheTimeout       Duration `env:"CACHE_TIMEOUT,default=1s"`
}

type AdminConfig struct {
	// Emails predating claim-based admin marking
	Emails []string `env:"EMAILS,default="`
}

type OAuthConfig struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,default="`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,default="`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL,default=http://localhost:8080/api/v1/auth/oauth/google/callback"`
}

type RelayConfig struct {
	Functions     FunctionRoutes `env:"FUNCTIONS,default="`
	SigningSecret string         `env:"SIGNING_SECRET,default="`
	InvokeTimeout Duration       `env:"INVOKE_TIMEOUT,default=25s"`
}

type JobsConfig struct {
	ExpirySchedule       string `env:"EXPIRY_SCHEDULE,default=@every 1h"`
	SessionSweepSchedule string `env:"SESSION_SWEEP_SCHEDULE,default=@every 5m"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns PostgreSQL connection string in URL form, as expected by migrate
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// WorstCase is the longest one resolution can take: both profile queries
// time out, then the admin cache is read and written once each
func (s SessionConfig) WorstCase() time.Duration {
	return s.FullQueryTimeout.Duration + s.NarrowQueryTimeout.Duration + 2*s.CacheTimeout.Duration
}

// Enabled reports whether Google sign-in is configured
func (o OAuthConfig) Enabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if config.Session.WorstCase() >= config.Session.LoadingCeiling.Duration {
		return nil, fmt.Errorf("SESSION_LOADING_CEILING must exceed both profile query timeouts plus two cache timeouts")
	}

	return &config, nil
}

package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Upstream  UpstreamConfig
	Session   SessionConfig
	Guard     GuardConfig
	Bootstrap BootstrapConfig
	Mongo     MongoConfig
	Redis     RedisConfig
}

type UpstreamConfig struct {
	// BaseURL is the root of the catalog API, e.g. https://api.example.com
	BaseURL string `env:"UPSTREAM_BASE_URL, default=http://localhost:3000"`
	// TimeoutSeconds bounds every upstream call; a hit counts as a
	// transport failure, not an authorization failure.
	TimeoutSeconds int `env:"UPSTREAM_TIMEOUT_SECONDS, default=10"`
}

type SessionConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME, default=mobilia_sid"`
	// Secure sets the cookie Secure flag; enable behind HTTPS.
	Secure bool `env:"SESSION_COOKIE_SECURE, default=false"`
	// MaxAgeHours is the advisory session age; nothing evicts on it.
	MaxAgeHours int `env:"SESSION_MAX_AGE_HOURS, default=24"`
}

type GuardConfig struct {
	// Strict makes the route guard resolve the session against the upstream
	// before serving, instead of answering from the store and reconciling in
	// the background.
	Strict bool `env:"GUARD_STRICT, default=false"`
}

type BootstrapConfig struct {
	// AdminIdentifier and AdminPasswordHash (bcrypt) enable the fallback
	// admin login while the upstream is unreachable. Leave empty to disable.
	AdminIdentifier   string `env:"BOOTSTRAP_ADMIN_IDENTIFIER"`
	AdminPasswordHash string `env:"BOOTSTRAP_ADMIN_PASSWORD_HASH"`
	// JWTSecret signs locally minted fallback tokens.
	JWTSecret string `env:"BOOTSTRAP_JWT_SECRET"`
}

type MongoConfig struct {
	URI            string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database       string `env:"MONGO_DB,  default=mobilia_admin"`
	TimeoutSeconds int    `env:"MONGO_TIMEOUT_SECONDS, default=10"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}

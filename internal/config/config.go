// Package config loads application configuration from environment variables.
// Values are resolved once at startup into an immutable Config which is then
// passed to constructors; nothing reads the environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"` // dev | test | prod
	Port string `env:"APP_PORT" envDefault:"8080"`

	DBUser string `env:"DB_USER,required"`
	DBPass string `env:"DB_PASS"` // empty allowed
	DBHost string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort string `env:"DB_PORT" envDefault:"3306"`
	DBName string `env:"DB_NAME,required"`

	// AccessSecret and RefreshSecret are two independent HMAC keys. A leak
	// of one must not allow forging the other kind of token.
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"240h"`
	Issuer        string        `env:"TOKEN_ISSUER" envDefault:"videotube-identity"`

	BcryptCost    int  `env:"BCRYPT_COST" envDefault:"12"`
	RevokeOnReuse bool `env:"SESSION_REVOKE_ON_REUSE" envDefault:"false"`
	CookieSecure  bool `env:"COOKIE_SECURE" envDefault:"true"`

	RateLimit RateLimitConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Broker    BrokerConfig
}

// Load reads an optional .env file, parses the process environment and
// validates the result. The caller decides how to report a failure.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// FromMap builds a Config from an explicit variable set instead of the
// process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("access token TTL must be shorter than refresh token TTL")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost %d", c.BcryptCost)
	}
	return nil
}

// IsDev reports whether the service runs in a local development mode.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "local" }

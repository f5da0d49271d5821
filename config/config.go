package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ebuchanan1123/autopiece/pkg/constant"
)

// Config is the immutable service configuration, loaded once at startup and
// passed into constructors. Priority: explicit path argument, then
// CONFIG_PATH, then ./local.yaml, then environment variables only.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"development"`
	HTTP    HTTPConfig    `yaml:"http"`
	DB      DBConfig      `yaml:"db"`
	Auth    AuthConfig    `yaml:"auth"`
	Session SessionConfig `yaml:"session"`
	Cookie  CookieConfig  `yaml:"cookie"`
}

type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type DBConfig struct {
	URL          string        `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	MaxConns     int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	QueryTimeout time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"5s"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`

	MaxLoginFailures int           `yaml:"max_login_failures" env:"MAX_LOGIN_FAILURES" env-default:"5"`
	LockDuration     time.Duration `yaml:"lock_duration" env:"LOCK_DURATION" env-default:"10m"`
}

type SessionConfig struct {
	RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	FingerprintSecret string        `yaml:"fingerprint_secret" env:"SESSION_FINGERPRINT_SECRET" env-required:"true"`
	FingerprintStrict bool          `yaml:"fingerprint_strict" env:"SESSION_FINGERPRINT_STRICT" env-default:"false"`
}

type CookieConfig struct {
	Domain   string `yaml:"domain" env:"COOKIE_DOMAIN" env-default:""`
	Secure   bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"false"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAMESITE" env-default:"lax"`
}

// MustLoad loads the configuration or exits the process.
func MustLoad() *Config {
	cfg, err := Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	return cfg
}

// Load reads the configuration and applies validation and normalization.
func Load(path string) (*Config, error) {
	var cfg Config

	resolved := resolvePath(path)
	if resolved != "" {
		if err := cleanenv.ReadConfig(resolved, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", resolved, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return "local.yaml"
	}

	return ""
}

func (c *Config) validate() error {
	// Weak server-side secrets are a startup failure, not a runtime surprise.
	if len(c.Auth.JWTSecret) < constant.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", constant.MinSecretLength)
	}
	if len(c.Session.FingerprintSecret) < constant.MinSecretLength {
		return fmt.Errorf("SESSION_FINGERPRINT_SECRET must be at least %d characters", constant.MinSecretLength)
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict", "none":
	default:
		return errors.New(`COOKIE_SAMESITE must be one of "lax", "strict", "none"`)
	}

	if c.Auth.MaxLoginFailures < 1 {
		return errors.New("MAX_LOGIN_FAILURES must be at least 1")
	}

	return nil
}

func (c *Config) normalize() {
	c.Cookie.SameSite = strings.ToLower(c.Cookie.SameSite)

	// Cross-site cookies require secure transport; downgrade instead of
	// shipping a cookie browsers will drop.
	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		c.Cookie.SameSite = "lax"
	}
}
